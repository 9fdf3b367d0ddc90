package management

import "time"

type Workstation struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type CreateWorkstationRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateWorkstationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type TrackingCondition struct {
	ID         string  `json:"id"`
	ColumnName string  `json:"column_name"`
	Operator   string  `json:"operator"`
	Value      *string `json:"value,omitempty"`
	Position   int     `json:"position"`
}

type TrackingRule struct {
	ID            string              `json:"id"`
	LogicOperator string              `json:"logic_operator"`
	Position      int                 `json:"position"`
	Conditions    []TrackingCondition `json:"conditions"`
}

// RuleSet is one workstation's complete rule configuration. Version counts
// up by one on every successful save.
type RuleSet struct {
	WorkstationID string         `json:"workstation_id"`
	Version       int64          `json:"version"`
	Rules         []TrackingRule `json:"rules"`
	UpdatedAt     time.Time      `json:"updated_at"`
	UpdatedBy     string         `json:"updated_by,omitempty"`
}

type SaveConditionRequest struct {
	ColumnName string  `json:"column_name" binding:"required"`
	Operator   string  `json:"operator" binding:"required"`
	Value      *string `json:"value"`
}

type SaveRuleRequest struct {
	LogicOperator string                 `json:"logic_operator" binding:"required"`
	Conditions    []SaveConditionRequest `json:"conditions" binding:"required"`
}

// SaveRuleSetRequest replaces the workstation's whole rule set. When
// ExpectedVersion is set the save is rejected with a conflict if another
// writer got there first; when it is nil the last write wins.
type SaveRuleSetRequest struct {
	Rules           []SaveRuleRequest `json:"rules"`
	ExpectedVersion *int64            `json:"expected_version"`
}

type ImportProfile struct {
	ID             string          `json:"id" bson:"_id,omitempty"`
	Name           string          `json:"name" bson:"name"`
	Format         string          `json:"format" bson:"format"`
	Delimiter      string          `json:"delimiter,omitempty" bson:"delimiter"`
	HasHeaderRow   bool            `json:"has_header_row" bson:"has_header_row"`
	ColumnMappings []ColumnMapping `json:"column_mappings" bson:"column_mappings"`
	Enabled        bool            `json:"enabled" bson:"enabled"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}

// ColumnMapping maps one source column of an uploaded file onto a catalog
// column, optionally through a CEL expression.
type ColumnMapping struct {
	Source     string `json:"source" bson:"source"`
	Target     string `json:"target" bson:"target"`
	Expression string `json:"expression,omitempty" bson:"expression"`
	Required   bool   `json:"required" bson:"required"`
}

type CreateImportProfileRequest struct {
	Name           string          `json:"name" binding:"required"`
	Format         string          `json:"format" binding:"required"`
	Delimiter      string          `json:"delimiter"`
	HasHeaderRow   *bool           `json:"has_header_row"`
	ColumnMappings []ColumnMapping `json:"column_mappings" binding:"required"`
	Enabled        *bool           `json:"enabled"`
}

type UpdateImportProfileRequest struct {
	Name           *string          `json:"name"`
	Format         *string          `json:"format"`
	Delimiter      *string          `json:"delimiter"`
	HasHeaderRow   *bool            `json:"has_header_row"`
	ColumnMappings *[]ColumnMapping `json:"column_mappings"`
	Enabled        *bool            `json:"enabled"`
}
