package management

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "parttrack/pkg/errors"
)

type Repository interface {
	CreateWorkstation(ctx context.Context, workstation *Workstation) error
	ListWorkstations(ctx context.Context, limit, offset int) ([]Workstation, error)
	GetWorkstation(ctx context.Context, id string) (*Workstation, error)
	UpdateWorkstation(ctx context.Context, workstation *Workstation) error
	DeleteWorkstation(ctx context.Context, id string) error

	LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error)
	SaveRuleSet(ctx context.Context, workstationID string, rules []TrackingRule, expectedVersion *int64, changedBy string) (*RuleSet, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateWorkstation(ctx context.Context, workstation *Workstation) error {
	if workstation.ID == "" {
		workstation.ID = uuid.New().String()
	}
	now := time.Now()
	workstation.CreatedAt = now
	workstation.UpdatedAt = now

	query := `
		INSERT INTO workstations (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		workstation.ID, workstation.Name, workstation.Description,
		workstation.CreatedAt, workstation.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("workstation with name '%s' already exists", workstation.Name))
			}
		}
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("workstation with name '%s' already exists", workstation.Name))
		}
		return fmt.Errorf("failed to create workstation: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetWorkstation(ctx context.Context, id string) (*Workstation, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM workstations
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	var workstation Workstation
	err := row.Scan(
		&workstation.ID, &workstation.Name, &workstation.Description,
		&workstation.CreatedAt, &workstation.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workstation not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workstation: %w", err)
	}

	return &workstation, nil
}

func (r *PostgresRepository) ListWorkstations(ctx context.Context, limit, offset int) ([]Workstation, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM workstations
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstations: %w", err)
	}
	defer rows.Close()

	var workstations []Workstation
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var workstation Workstation
		if err := rows.Scan(
			&workstation.ID, &workstation.Name, &workstation.Description,
			&workstation.CreatedAt, &workstation.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workstation: %w", err)
		}
		workstations = append(workstations, workstation)
	}

	return workstations, nil
}

func (r *PostgresRepository) UpdateWorkstation(ctx context.Context, workstation *Workstation) error {
	workstation.UpdatedAt = time.Now()

	query := `
		UPDATE workstations
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`

	res, err := r.db.ExecContext(ctx, query,
		workstation.Name, workstation.Description, workstation.UpdatedAt, workstation.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("workstation with name '%s' already exists", workstation.Name))
		}
		return fmt.Errorf("failed to update workstation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("workstation not found")
	}

	return nil
}

func (r *PostgresRepository) DeleteWorkstation(ctx context.Context, id string) error {
	query := `DELETE FROM workstations WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workstation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("workstation not found")
	}

	return nil
}

func (r *PostgresRepository) LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error) {
	headQuery := `
		SELECT w.id, COALESCE(v.version, 0), COALESCE(v.updated_at, w.created_at), COALESCE(v.updated_by, '')
		FROM workstations w
		LEFT JOIN rule_set_versions v ON v.workstation_id = w.id
		WHERE w.id = $1
	`

	ruleSet := &RuleSet{}
	err := r.db.QueryRowContext(ctx, headQuery, workstationID).Scan(
		&ruleSet.WorkstationID, &ruleSet.Version, &ruleSet.UpdatedAt, &ruleSet.UpdatedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workstation not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set head: %w", err)
	}

	rulesQuery := `
		SELECT r.id, r.logic_operator, r.position,
		       c.id, c.column_name, c.operator, c.value, c.position
		FROM tracking_rules r
		JOIN tracking_rule_conditions c ON c.rule_id = r.id
		WHERE r.workstation_id = $1
		ORDER BY r.position ASC, c.position ASC
	`

	rows, err := r.db.QueryContext(ctx, rulesQuery, workstationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rule TrackingRule
			cond TrackingCondition
		)
		if err := rows.Scan(
			&rule.ID, &rule.LogicOperator, &rule.Position,
			&cond.ID, &cond.ColumnName, &cond.Operator, &cond.Value, &cond.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule condition: %w", err)
		}

		last := len(ruleSet.Rules) - 1
		if last >= 0 && ruleSet.Rules[last].ID == rule.ID {
			ruleSet.Rules[last].Conditions = append(ruleSet.Rules[last].Conditions, cond)
			continue
		}
		rule.Conditions = []TrackingCondition{cond}
		ruleSet.Rules = append(ruleSet.Rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ruleSet, nil
}

// SaveRuleSet replaces the workstation's rules in one transaction: the old
// rules are deleted, the new ones inserted, and the version row bumped. With
// an expected version the save fails with a conflict when the stored version
// moved on; without one the last write wins.
func (r *PostgresRepository) SaveRuleSet(ctx context.Context, workstationID string, rules []TrackingRule, expectedVersion *int64, changedBy string) (*RuleSet, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM workstations WHERE id = $1`, workstationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workstation not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check workstation: %w", err)
	}

	var currentVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM rule_set_versions WHERE workstation_id = $1 FOR UPDATE`,
		workstationID,
	).Scan(&currentVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read rule set version: %w", err)
	}

	if expectedVersion != nil && *expectedVersion != currentVersion {
		return nil, pkgerrors.ErrConflict.
			WithDetail("message", "rule set was modified by another writer").
			WithDetail("expected_version", *expectedVersion).
			WithDetail("current_version", currentVersion)
	}

	now := time.Now()
	newVersion := currentVersion + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_set_versions (workstation_id, version, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workstation_id) DO UPDATE
		SET version = $2, updated_at = $3, updated_by = $4
	`, workstationID, newVersion, now, changedBy)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, pkgerrors.ErrConflict.WithCause(err).WithDetail("message", "concurrent rule set save")
		}
		return nil, fmt.Errorf("failed to bump rule set version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracking_rules WHERE workstation_id = $1`, workstationID); err != nil {
		return nil, fmt.Errorf("failed to delete old rules: %w", err)
	}

	saved := make([]TrackingRule, 0, len(rules))
	for i, rule := range rules {
		rule.ID = uuid.New().String()
		rule.Position = i

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tracking_rules (id, workstation_id, logic_operator, position, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rule.ID, workstationID, rule.LogicOperator, rule.Position, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert rule: %w", err)
		}

		conditions := make([]TrackingCondition, 0, len(rule.Conditions))
		for j, cond := range rule.Conditions {
			cond.ID = uuid.New().String()
			cond.Position = j

			_, err := tx.ExecContext(ctx, `
				INSERT INTO tracking_rule_conditions (id, rule_id, column_name, operator, value, position, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, cond.ID, rule.ID, cond.ColumnName, cond.Operator, cond.Value, cond.Position, now)
			if err != nil {
				return nil, fmt.Errorf("failed to insert condition: %w", err)
			}
			conditions = append(conditions, cond)
		}
		rule.Conditions = conditions
		saved = append(saved, rule)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rule set: %w", err)
	}

	return &RuleSet{
		WorkstationID: workstationID,
		Version:       newVersion,
		Rules:         saved,
		UpdatedAt:     now,
		UpdatedBy:     changedBy,
	}, nil
}
