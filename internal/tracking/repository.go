package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "parttrack/pkg/errors"
)

type Repository interface {
	LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error)
	ListWorkstationIDs(ctx context.Context) ([]string, error)
	InsertDecision(ctx context.Context, decision *Decision) error
	ListTrackedParts(ctx context.Context, workstationID string, limit, offset int) ([]TrackedPart, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// LoadRuleSet returns the persisted rule set for one workstation. A
// workstation without rules yields an empty set at version 0, an unknown
// workstation yields ErrNotFound.
func (r *PostgresRepository) LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error) {
	headQuery := `
		SELECT w.id, COALESCE(v.version, 0), COALESCE(v.updated_at, w.created_at)
		FROM workstations w
		LEFT JOIN rule_set_versions v ON v.workstation_id = w.id
		WHERE w.id = $1
	`

	ruleSet := &RuleSet{}
	err := r.db.QueryRowContext(ctx, headQuery, workstationID).Scan(
		&ruleSet.WorkstationID, &ruleSet.Version, &ruleSet.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("workstation '%s' not found", workstationID))
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
			rule Rule
			cond Condition
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
		rule.Conditions = []Condition{cond}
		ruleSet.Rules = append(ruleSet.Rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ruleSet, nil
}

func (r *PostgresRepository) ListWorkstationIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM workstations ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workstation id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}

func (r *PostgresRepository) InsertDecision(ctx context.Context, decision *Decision) error {
	query := `
		INSERT INTO tracking_decisions (id, part_id, workstation_id, tracked, matched_rule_id, rule_set_version, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), decision.PartID, decision.WorkstationID,
		decision.Tracked, decision.MatchedRuleID, decision.RuleSetVersion, decision.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	return nil
}

// ListTrackedParts returns parts whose most recent decision for the
// workstation was positive, newest decisions first.
func (r *PostgresRepository) ListTrackedParts(ctx context.Context, workstationID string, limit, offset int) ([]TrackedPart, error) {
	query := `
		SELECT p.id, p.article_code, p.description, p.supplier, p.supplier_article_code,
		       p.manufacturer, p.manufacturer_article_code, p.location, p.order_number,
		       p.unit, p.remark, p.quantity, p.unit_price, p.delivery_date,
		       p.source, p.batch_id, p.created_at,
		       d.matched_rule_id
		FROM parts p
		JOIN LATERAL (
			SELECT tracked, matched_rule_id, evaluated_at
			FROM tracking_decisions
			WHERE part_id = p.id AND workstation_id = $1
			ORDER BY evaluated_at DESC
			LIMIT 1
		) d ON true
		WHERE d.tracked = true
		ORDER BY d.evaluated_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, workstationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked parts: %w", err)
	}
	defer rows.Close()

	var parts []TrackedPart
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		tracked := TrackedPart{Tracked: true}
		p := &tracked.Part
		if err := rows.Scan(
			&p.ID, &p.ArticleCode, &p.Description, &p.Supplier, &p.SupplierArticleCode,
			&p.Manufacturer, &p.ManufacturerArticleCode, &p.Location, &p.OrderNumber,
			&p.Unit, &p.Remark, &p.Quantity, &p.UnitPrice, &p.DeliveryDate,
			&p.Source, &p.BatchID, &p.CreatedAt,
			&tracked.MatchedRuleID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tracked part: %w", err)
		}
		parts = append(parts, tracked)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return parts, nil
}
