package models

import "time"

// ConfigUpdateEvent notifies running services that admin configuration
// changed. Best effort: consumers also reload on a timer, so a lost event
// delays a reload rather than losing it.
type ConfigUpdateEvent struct {
	EventType     string                 `json:"event_type"`
	ServiceType   string                 `json:"service_type"`
	WorkstationID string                 `json:"workstation_id,omitempty"`
	ProfileID     string                 `json:"profile_id,omitempty"`
	Action        string                 `json:"action"`
	Timestamp     time.Time              `json:"timestamp"`
	ChangedBy     string                 `json:"changed_by,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeRuleSetUpdated       = "ruleset_updated"
	EventTypeWorkstationDeleted   = "workstation_deleted"
	EventTypeImportProfileUpdated = "import_profile_updated"
)

const (
	ActionCreate  = "create"
	ActionReplace = "replace"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
)

const (
	ServiceTypeTracking = "tracking"
	ServiceTypeImport   = "import"
)
