package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "parttrack/pkg/errors"
	"parttrack/pkg/models"
)

type Repository interface {
	InsertBatch(ctx context.Context, batch *ImportBatch) error
	FinishBatch(ctx context.Context, batch *ImportBatch) error
	GetBatch(ctx context.Context, id string) (*ImportBatch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]ImportBatch, error)
	InsertParts(ctx context.Context, parts []models.Part) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertBatch(ctx context.Context, batch *ImportBatch) error {
	batch.ID = uuid.New().String()
	batch.Status = BatchStatusRunning
	batch.StartedAt = time.Now()

	query := `
		INSERT INTO import_batches (id, profile_id, profile_name, file_name, status, created_by, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.ProfileID, batch.ProfileName, batch.FileName,
		batch.Status, batch.CreatedBy, batch.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import batch: %w", err)
	}

	return nil
}

// FinishBatch writes the batch outcome. Row errors beyond the storage cap
// were already dropped by the service; what is left lands in one JSONB
// column.
func (r *PostgresRepository) FinishBatch(ctx context.Context, batch *ImportBatch) error {
	rowErrors, err := json.Marshal(batch.RowErrors)
	if err != nil {
		return fmt.Errorf("failed to marshal row errors: %w", err)
	}

	query := `
		UPDATE import_batches
		SET status = $1, object_key = $2, total_rows = $3, imported_rows = $4,
		    skipped_rows = $5, failed_rows = $6, row_errors = $7, error = $8, finished_at = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		batch.Status, batch.ObjectKey, batch.TotalRows, batch.ImportedRows,
		batch.SkippedRows, batch.FailedRows, rowErrors, batch.Error, batch.FinishedAt,
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish import batch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("import batch not found")
	}

	return nil
}

func (r *PostgresRepository) GetBatch(ctx context.Context, id string) (*ImportBatch, error) {
	query := `
		SELECT id, profile_id, profile_name, file_name, COALESCE(object_key, ''),
		       status, total_rows, imported_rows, skipped_rows, failed_rows,
		       COALESCE(row_errors, '[]'), COALESCE(error, ''), COALESCE(created_by, ''),
		       started_at, finished_at
		FROM import_batches
		WHERE id = $1`

	var batch ImportBatch
	var rowErrors []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID, &batch.ProfileID, &batch.ProfileName, &batch.FileName, &batch.ObjectKey,
		&batch.Status, &batch.TotalRows, &batch.ImportedRows, &batch.SkippedRows, &batch.FailedRows,
		&rowErrors, &batch.Error, &batch.CreatedBy,
		&batch.StartedAt, &batch.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("import batch '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}

	if err := json.Unmarshal(rowErrors, &batch.RowErrors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row errors: %w", err)
	}

	return &batch, nil
}

// ListBatches returns batches newest first. Row errors are only loaded when
// a single batch is fetched.
func (r *PostgresRepository) ListBatches(ctx context.Context, limit, offset int) ([]ImportBatch, error) {
	query := `
		SELECT id, profile_id, profile_name, file_name, COALESCE(object_key, ''),
		       status, total_rows, imported_rows, skipped_rows, failed_rows,
		       COALESCE(error, ''), COALESCE(created_by, ''), started_at, finished_at
		FROM import_batches
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list import batches: %w", err)
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var batch ImportBatch
		err := rows.Scan(
			&batch.ID, &batch.ProfileID, &batch.ProfileName, &batch.FileName, &batch.ObjectKey,
			&batch.Status, &batch.TotalRows, &batch.ImportedRows, &batch.SkippedRows, &batch.FailedRows,
			&batch.Error, &batch.CreatedBy, &batch.StartedAt, &batch.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import batch: %w", err)
		}
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import batches: %w", err)
	}

	return batches, nil
}

// InsertParts bulk-loads the accepted rows of a batch in one transaction via
// COPY. Either every part of the batch lands or none does.
func (r *PostgresRepository) InsertParts(ctx context.Context, parts []models.Part) error {
	if len(parts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("parts",
		"id", "article_code", "description", "supplier", "supplier_article_code",
		"manufacturer", "manufacturer_article_code", "location", "order_number",
		"unit", "remark", "quantity", "unit_price", "delivery_date",
		"source", "batch_id", "created_at",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare part copy: %w", err)
	}

	for i := range parts {
		part := &parts[i]
		_, err = stmt.ExecContext(ctx,
			part.ID, part.ArticleCode, part.Description, part.Supplier, part.SupplierArticleCode,
			part.Manufacturer, part.ManufacturerArticleCode, part.Location, part.OrderNumber,
			part.Unit, part.Remark, part.Quantity, part.UnitPrice, part.DeliveryDate,
			part.Source, part.BatchID, part.CreatedAt,
		)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy part %s: %w", part.ArticleCode, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush part copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close part copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parts: %w", err)
	}

	return nil
}
