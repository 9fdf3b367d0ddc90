package models

import "time"

// TrackingDecisionEvent records one tracking decision for downstream
// consumers (workstation boards, reporting).
type TrackingDecisionEvent struct {
	ID             string    `json:"id"`
	PartID         string    `json:"part_id"`
	ArticleCode    string    `json:"article_code"`
	WorkstationID  string    `json:"workstation_id"`
	Tracked        bool      `json:"tracked"`
	MatchedRuleID  string    `json:"matched_rule_id,omitempty"`
	RuleSetVersion int64     `json:"rule_set_version"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}
