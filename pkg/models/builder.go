package models

import "time"

type PartEventBuilder struct {
	event *PartEvent
}

func NewPartEventBuilder() *PartEventBuilder {
	return &PartEventBuilder{
		event: &PartEvent{
			EventType: EventTypePartImported,
		},
	}
}

func (b *PartEventBuilder) WithID(id string) *PartEventBuilder {
	b.event.ID = id
	return b
}

func (b *PartEventBuilder) WithEventType(eventType string) *PartEventBuilder {
	b.event.EventType = eventType
	return b
}

func (b *PartEventBuilder) WithSource(source string) *PartEventBuilder {
	b.event.Source = source
	return b
}

func (b *PartEventBuilder) WithTimestamp(timestamp time.Time) *PartEventBuilder {
	b.event.Timestamp = timestamp
	return b
}

func (b *PartEventBuilder) WithTraceID(traceID string) *PartEventBuilder {
	b.event.TraceID = traceID
	return b
}

func (b *PartEventBuilder) WithPart(part Part) *PartEventBuilder {
	b.event.Part = part
	return b
}

func (b *PartEventBuilder) Build() *PartEvent {
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now()
	}
	return b.event
}
