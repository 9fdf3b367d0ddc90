package importer

import (
	"context"
	"fmt"
	"time"

	"parttrack/internal/config"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
	"parttrack/pkg/metrics"
)

// Deduper suppresses rows that were already imported inside the TTL window.
// The check is a Redis SetNX on a hash of the configured part columns, so it
// also catches the same row arriving in two different files. A nil
// repository disables duplicate suppression.
type Deduper struct {
	repo   DedupRepository
	hasher *Hasher
	cfg    config.DedupConfig
	fields []string
	logger logger.Logger
}

func NewDeduper(repo DedupRepository, cfg config.DedupConfig, log logger.Logger) *Deduper {
	fields := cfg.FieldsToHash
	if len(fields) == 0 {
		fields = []string{"article_code", "supplier"}
		log.Infow("No fields_to_hash configured, using defaults", "fields", fields)
	}

	return &Deduper{
		repo:   repo,
		hasher: NewHasher(cfg.HashAlgorithm),
		cfg:    cfg,
		fields: fields,
		logger: log,
	}
}

// IsNewRow reports whether the row was not seen inside the TTL window. A
// Redis failure is resolved by the on_redis_error policy: allow lets the row
// through (duplicates become possible), anything else surfaces the error so
// the row is recorded as failed.
func (d *Deduper) IsNewRow(ctx context.Context, values map[string]string) (bool, error) {
	if d.repo == nil {
		return true, nil
	}

	hash, err := d.hasher.ComputeRowHash(values, d.fields)
	if err != nil {
		return false, fmt.Errorf("failed to compute row hash: %w", err)
	}

	ttl := time.Duration(d.cfg.TTLSeconds) * time.Second
	if d.cfg.TTLSeconds <= 0 {
		ttl = constants.DefaultDedupTTLSeconds * time.Second
	}

	key := constants.CacheKeyPrefixImport + hash
	success, err := d.repo.SetNX(ctx, key, time.Now().Unix(), ttl)
	if err != nil {
		if d.cfg.OnRedisError == constants.FallbackAllow {
			metrics.FallbackUsageTotal.WithLabelValues("import", "allow_on_error", "dedup_unavailable").Inc()
			d.logger.WarnwCtx(ctx, "Redis error during duplicate check, importing row (fallback: allow)",
				"error", err,
			)
			return true, nil
		}
		metrics.FallbackUsageTotal.WithLabelValues("import", "deny_on_error", "dedup_unavailable").Inc()
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}

	return success, nil
}

// CacheSize reports how many dedup keys are live, for the gauge updater.
func (d *Deduper) CacheSize(ctx context.Context) (int, error) {
	if d.repo == nil {
		return 0, nil
	}
	return d.repo.GetCacheSize(ctx, constants.CacheKeyPrefixImport)
}
