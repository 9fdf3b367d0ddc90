package tracking

import (
	"time"

	"parttrack/pkg/models"
)

type Condition struct {
	ID         string  `json:"id"`
	ColumnName string  `json:"column_name"`
	Operator   string  `json:"operator"`
	Value      *string `json:"value,omitempty"`
	Position   int     `json:"position"`
}

type Rule struct {
	ID            string      `json:"id"`
	LogicOperator string      `json:"logic_operator"`
	Position      int         `json:"position"`
	Conditions    []Condition `json:"conditions"`
}

// RuleSet is the read-side view of one workstation's tracking rules, in the
// stable order they were saved in.
type RuleSet struct {
	WorkstationID string    `json:"workstation_id"`
	Version       int64     `json:"version"`
	Rules         []Rule    `json:"rules"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Decision struct {
	PartID         string    `json:"part_id"`
	WorkstationID  string    `json:"workstation_id"`
	Tracked        bool      `json:"tracked"`
	MatchedRuleID  string    `json:"matched_rule_id,omitempty"`
	RuleSetVersion int64     `json:"rule_set_version"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// TrackedPart annotates a catalog part with the decision for one
// workstation, for the tracked-parts listing.
type TrackedPart struct {
	Part          models.Part `json:"part"`
	Tracked       bool        `json:"tracked"`
	MatchedRuleID string      `json:"matched_rule_id,omitempty"`
}
