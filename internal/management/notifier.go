package management

import (
	"context"
	"time"

	"parttrack/internal/broker"
	"parttrack/pkg/models"
)

// ConfigEventProducer publishes configuration change events so the other
// services drop their cached rule sets and profiles. A nil producer or
// empty topic turns publishing off, which keeps the management service
// usable without a broker.
type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishRuleSetEvent(ctx context.Context, action, workstationID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:     models.EventTypeRuleSetUpdated,
		ServiceType:   models.ServiceTypeTracking,
		WorkstationID: workstationID,
		Action:        action,
		Timestamp:     time.Now(),
		ChangedBy:     changedBy,
	}
	return p.publishEvent(ctx, workstationID, event)
}

func (p *ConfigEventProducer) PublishWorkstationDeletedEvent(ctx context.Context, workstationID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:     models.EventTypeWorkstationDeleted,
		ServiceType:   models.ServiceTypeTracking,
		WorkstationID: workstationID,
		Action:        models.ActionDelete,
		Timestamp:     time.Now(),
		ChangedBy:     changedBy,
	}
	return p.publishEvent(ctx, workstationID, event)
}

func (p *ConfigEventProducer) PublishImportProfileEvent(ctx context.Context, action, profileID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:   models.EventTypeImportProfileUpdated,
		ServiceType: models.ServiceTypeImport,
		ProfileID:   profileID,
		Action:      action,
		Timestamp:   time.Now(),
		ChangedBy:   changedBy,
	}
	return p.publishEvent(ctx, profileID, event)
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, key string, event models.ConfigUpdateEvent) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, key, event)
}
