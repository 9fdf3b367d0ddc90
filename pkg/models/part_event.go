package models

import "time"

// PartEvent is the envelope carried on the part-events topic. The import
// service emits one per inserted row; the tracking service consumes them to
// publish decisions.
type PartEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
	Part      Part      `json:"part"`
}

const (
	EventTypePartImported = "part_imported"
	EventTypePartUpdated  = "part_updated"
)
