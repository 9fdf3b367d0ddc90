package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RuleSetRevision is an immutable snapshot of a rule set as it was saved,
// kept for history and rollback.
type RuleSetRevision struct {
	ID            string    `json:"id"`
	WorkstationID string    `json:"workstation_id"`
	Version       int64     `json:"version"`
	Snapshot      string    `json:"snapshot"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	EntityID     *string                `json:"entity_id,omitempty"`
	EntityType   string                 `json:"entity_type"`
	Action       string                 `json:"action"`
	OldValue     map[string]interface{} `json:"old_value,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy    string                 `json:"changed_by"`
	ChangeReason string                 `json:"change_reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type VersioningRepository interface {
	CreateRevision(ctx context.Context, revision *RuleSetRevision) error
	GetRevisions(ctx context.Context, workstationID string) ([]RuleSetRevision, error)
	GetRevision(ctx context.Context, workstationID string, version int64) (*RuleSetRevision, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, entityID *string, entityType string, limit int) ([]AuditLog, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

func (r *postgresVersioningRepository) CreateRevision(ctx context.Context, revision *RuleSetRevision) error {
	if revision.ID == "" {
		revision.ID = uuid.New().String()
	}
	if revision.CreatedAt.IsZero() {
		revision.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO rule_set_revisions (id, workstation_id, version, snapshot, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		revision.ID, revision.WorkstationID, revision.Version,
		revision.Snapshot, revision.ChangedBy, revision.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule set revision: %w", err)
	}

	return nil
}

func (r *postgresVersioningRepository) GetRevisions(ctx context.Context, workstationID string) ([]RuleSetRevision, error) {
	query := `
		SELECT id, workstation_id, version, snapshot, changed_by, created_at
		FROM rule_set_revisions
		WHERE workstation_id = $1
		ORDER BY version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workstationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var revisions []RuleSetRevision
	for rows.Next() {
		var rev RuleSetRevision
		if err := rows.Scan(
			&rev.ID, &rev.WorkstationID, &rev.Version,
			&rev.Snapshot, &rev.ChangedBy, &rev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revisions = append(revisions, rev)
	}

	return revisions, nil
}

func (r *postgresVersioningRepository) GetRevision(ctx context.Context, workstationID string, version int64) (*RuleSetRevision, error) {
	query := `
		SELECT id, workstation_id, version, snapshot, changed_by, created_at
		FROM rule_set_revisions
		WHERE workstation_id = $1 AND version = $2
	`

	var rev RuleSetRevision
	err := r.db.QueryRowContext(ctx, query, workstationID, version).Scan(
		&rev.ID, &rev.WorkstationID, &rev.Version,
		&rev.Snapshot, &rev.ChangedBy, &rev.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}

	return &rev, nil
}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	var oldValueJSON, newValueJSON []byte
	var err error

	if log.OldValue != nil {
		oldValueJSON, err = json.Marshal(log.OldValue)
		if err != nil {
			return fmt.Errorf("failed to marshal old value: %w", err)
		}
	}

	if log.NewValue != nil {
		newValueJSON, err = json.Marshal(log.NewValue)
		if err != nil {
			return fmt.Errorf("failed to marshal new value: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, entity_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.EntityID, log.EntityType, log.Action,
		oldValueJSON, newValueJSON, log.ChangedBy, log.ChangeReason, log.IPAddress, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, entityID *string, entityType string, limit int) ([]AuditLog, error) {
	var query string
	var args []interface{}

	if entityID != nil {
		query = `
			SELECT id, entity_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM audit_logs
			WHERE entity_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{*entityID, limit}
	} else if entityType != "" {
		query = `
			SELECT id, entity_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM audit_logs
			WHERE entity_type = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{entityType, limit}
	} else {
		query = `
			SELECT id, entity_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM audit_logs
			ORDER BY timestamp DESC
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var oldValueJSON, newValueJSON []byte
		var entityIDPtr *string
		var changeReason, ipAddress sql.NullString

		if err := rows.Scan(
			&log.ID, &entityIDPtr, &log.EntityType, &log.Action,
			&oldValueJSON, &newValueJSON, &log.ChangedBy, &changeReason, &ipAddress, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.EntityID = entityIDPtr
		log.ChangeReason = changeReason.String
		log.IPAddress = ipAddress.String

		if len(oldValueJSON) > 0 {
			if err := json.Unmarshal(oldValueJSON, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}

		if len(newValueJSON) > 0 {
			if err := json.Unmarshal(newValueJSON, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}

		logs = append(logs, log)
	}

	return logs, nil
}
