package importer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parttrack/internal/broker"
	"parttrack/internal/config"
	"parttrack/internal/logger"
	"parttrack/pkg/metrics"
	"parttrack/pkg/models"
	"parttrack/pkg/retry"
	"parttrack/pkg/tracing"
)

// EventPublisher emits one part event per inserted row so the tracking
// service can evaluate new parts as they arrive. Publishing is retried with
// backoff; a part whose event is lost after that is still imported, the
// tracking side picks it up on its next on-demand evaluation.
type EventPublisher struct {
	producer broker.Producer
	topic    string
	policy   retry.Policy
	logger   logger.Logger
}

func NewEventPublisher(producer broker.Producer, topic string, cfg config.KafkaRetryConfig, log logger.Logger) *EventPublisher {
	policy := retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	}.WithDefaults()

	return &EventPublisher{
		producer: producer,
		topic:    topic,
		policy:   policy,
		logger:   log,
	}
}

// PublishPartImported is best effort: the batch outcome does not depend on
// it. Returns false when the event could not be delivered.
func (p *EventPublisher) PublishPartImported(ctx context.Context, part models.Part) bool {
	if p.producer == nil || p.topic == "" {
		return true
	}

	event := models.NewPartEventBuilder().
		WithID(uuid.New().String()).
		WithEventType(models.EventTypePartImported).
		WithSource(part.Source).
		WithTraceID(tracing.TraceIDFromContext(ctx)).
		WithPart(part).
		Build()

	err := retry.Do(ctx, p.policy, func() error {
		return p.producer.Publish(ctx, p.topic, part.ID, event)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("import", p.topic).Inc()
		p.logger.WarnwCtx(ctx, "Retrying part event publish",
			"part_id", part.ID,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to publish part event",
			"part_id", part.ID,
			"topic", p.topic,
			"error", err,
		)
		return false
	}

	return true
}
