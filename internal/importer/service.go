package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"parttrack/internal/config"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
	pkgerrors "parttrack/pkg/errors"
	"parttrack/pkg/metrics"
	"parttrack/pkg/models"
	"parttrack/pkg/tracing"
)

type Service struct {
	repo        Repository
	profiles    *ProfileStore
	transformer *Transformer
	deduper     *Deduper
	archiver    *Archiver
	events      *EventPublisher
	cfg         config.ImportConfig
	logger      logger.Logger
}

func NewService(
	repo Repository,
	profiles *ProfileStore,
	transformer *Transformer,
	deduper *Deduper,
	archiver *Archiver,
	events *EventPublisher,
	cfg config.ImportConfig,
	log logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		profiles:    profiles,
		transformer: transformer,
		deduper:     deduper,
		archiver:    archiver,
		events:      events,
		cfg:         cfg,
		logger:      log,
	}
}

// RunImport processes one uploaded file end to end: archive, parse,
// transform, dedup, insert, publish. Row-level problems are collected on
// the batch and never abort it; only structural failures (unreadable file,
// database down) fail the batch as a whole.
func (s *Service) RunImport(ctx context.Context, profileID, fileName, contentType string, size int64, file io.Reader, actor string) (*ImportBatch, error) {
	ctx, span := tracing.GetTracer("import-service").Start(ctx, "import.run")
	defer span.End()

	profile, err := s.profiles.GetProfile(ctx, profileID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	if !profile.Enabled {
		return nil, pkgerrors.ErrValidation.WithDetail("message", fmt.Sprintf("import profile '%s' is disabled", profile.Name))
	}

	maxBytes := s.maxFileBytes()
	if size > maxBytes {
		return nil, pkgerrors.ErrValidation.WithDetail("message", fmt.Sprintf("file exceeds the size limit of %d bytes", maxBytes))
	}

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("message", "failed to read upload")
	}
	if int64(len(content)) > maxBytes {
		return nil, pkgerrors.ErrValidation.WithDetail("message", fmt.Sprintf("file exceeds the size limit of %d bytes", maxBytes))
	}

	batch := &ImportBatch{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		FileName:    fileName,
		CreatedBy:   actor,
	}
	if err := s.repo.InsertBatch(ctx, batch); err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}

	s.logger.InfowCtx(ctx, "Starting import batch",
		"batch_id", batch.ID,
		"profile", profile.Name,
		"file_name", fileName,
		"file_size", len(content),
	)

	// Archiving is best effort: losing the archive copy must not block the
	// import itself.
	objectKey, err := s.archiver.Store(ctx, batch.ID, fileName, contentType, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to archive upload", "batch_id", batch.ID, "error", err)
	}
	batch.ObjectKey = objectKey

	rows, err := ParseRows(*profile, bytes.NewReader(content), s.maxRows())
	if err != nil {
		s.failBatch(ctx, batch, err)
		return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("message", err.Error())
	}
	batch.TotalRows = len(rows)

	parts := s.processRows(ctx, profile, rows, batch)

	if err := s.repo.InsertParts(ctx, parts); err != nil {
		s.failBatch(ctx, batch, err)
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	batch.ImportedRows = len(parts)

	for i := range parts {
		s.events.PublishPartImported(ctx, parts[i])
	}

	now := time.Now()
	batch.Status = BatchStatusCompleted
	batch.FinishedAt = &now
	if err := s.repo.FinishBatch(ctx, batch); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record batch outcome", "batch_id", batch.ID, "error", err)
	}

	s.recordMetrics(batch)
	s.logger.InfowCtx(ctx, "Import batch completed",
		"batch_id", batch.ID,
		"total_rows", batch.TotalRows,
		"imported", batch.ImportedRows,
		"skipped", batch.SkippedRows,
		"failed", batch.FailedRows,
	)

	return batch, nil
}

// processRows transforms and dedups every parsed row, mutating the batch
// counters as it goes, and returns the parts that survived.
func (s *Service) processRows(ctx context.Context, profile *Profile, rows []Row, batch *ImportBatch) []models.Part {
	now := time.Now().UTC()
	source := "import:" + profile.Name
	parts := make([]models.Part, 0, len(rows))

	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}

		part, values, rowErrors := s.transformer.BuildPart(ctx, *profile, row)
		if len(rowErrors) > 0 {
			batch.FailedRows++
			s.recordRowErrors(batch, rowErrors)
			continue
		}

		isNew, err := s.deduper.IsNewRow(ctx, values)
		if err != nil {
			batch.FailedRows++
			s.recordRowErrors(batch, []RowError{{Row: row.Number, Message: err.Error()}})
			continue
		}
		if !isNew {
			batch.SkippedRows++
			metrics.ImportRowsTotal.WithLabelValues("skipped_duplicate").Inc()
			continue
		}

		part.ID = uuid.New().String()
		part.Source = source
		part.BatchID = batch.ID
		part.CreatedAt = now
		parts = append(parts, part)
	}

	return parts
}

func (s *Service) recordRowErrors(batch *ImportBatch, rowErrors []RowError) {
	metrics.ImportRowsTotal.WithLabelValues("failed").Inc()
	for _, rowError := range rowErrors {
		if len(batch.RowErrors) >= maxStoredRowErrors {
			return
		}
		batch.RowErrors = append(batch.RowErrors, rowError)
	}
}

func (s *Service) failBatch(ctx context.Context, batch *ImportBatch, cause error) {
	now := time.Now()
	batch.Status = BatchStatusFailed
	batch.Error = cause.Error()
	batch.FinishedAt = &now

	if err := s.repo.FinishBatch(ctx, batch); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record batch failure", "batch_id", batch.ID, "error", err)
	}

	metrics.ImportBatchesTotal.WithLabelValues(BatchStatusFailed).Inc()
	s.logger.ErrorwCtx(ctx, "Import batch failed",
		"batch_id", batch.ID,
		"error", cause,
	)
}

func (s *Service) recordMetrics(batch *ImportBatch) {
	metrics.ImportBatchesTotal.WithLabelValues(batch.Status).Inc()
	metrics.ImportRowsTotal.WithLabelValues("imported").Add(float64(batch.ImportedRows))
	if batch.FinishedAt != nil {
		metrics.ObserveImportBatchDuration(batch.FinishedAt.Sub(batch.StartedAt), batch.Status)
	}
}

func (s *Service) GetBatch(ctx context.Context, id string) (*ImportBatch, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	return batch, nil
}

// DownloadArchive streams the archived original file of a batch.
func (s *Service) DownloadArchive(ctx context.Context, id string) (io.ReadCloser, *ImportBatch, error) {
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if batch.ObjectKey == "" {
		return nil, nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("import batch '%s' has no archived file", id))
	}

	file, err := s.archiver.Fetch(ctx, batch.ObjectKey)
	if err != nil {
		if errors.Is(err, ErrArchivingDisabled) {
			return nil, nil, pkgerrors.ErrUnavailable.WithMessage("import archive storage is not configured")
		}
		return nil, nil, pkgerrors.ErrInternal.WithCause(err)
	}
	return file, batch, nil
}

func (s *Service) ListBatches(ctx context.Context, limit, offset int) ([]ImportBatch, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	batches, err := s.repo.ListBatches(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	return batches, nil
}

func (s *Service) maxFileBytes() int64 {
	if s.cfg.MaxFileBytes > 0 {
		return s.cfg.MaxFileBytes
	}
	return constants.MaxImportFileBytes
}

func (s *Service) maxRows() int {
	if s.cfg.MaxRows > 0 {
		return s.cfg.MaxRows
	}
	return constants.MaxImportRows
}

// StartCacheMetricsUpdater refreshes the dedup cache-size gauge until the
// context is cancelled.
func (s *Service) StartCacheMetricsUpdater(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				size, err := s.deduper.CacheSize(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Debugw("Failed to get dedup cache size for metrics", "error", err)
					continue
				}
				metrics.SetImportDedupCacheSize(size)
			case <-ctx.Done():
				return
			}
		}
	}()
}
