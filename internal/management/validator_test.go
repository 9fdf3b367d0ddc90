package management

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func condReq(column, operator string, value *string) SaveConditionRequest {
	return SaveConditionRequest{ColumnName: column, Operator: operator, Value: value}
}

func TestValidateWorkstation(t *testing.T) {
	assert.Error(t, ValidateWorkstation(CreateWorkstationRequest{}))
	assert.NoError(t, ValidateWorkstation(CreateWorkstationRequest{Name: "Drilling line 2"}))

	assert.NoError(t, ValidateUpdateWorkstation(UpdateWorkstationRequest{}))
	assert.Error(t, ValidateUpdateWorkstation(UpdateWorkstationRequest{Name: strPtr("")}))
	assert.NoError(t, ValidateUpdateWorkstation(UpdateWorkstationRequest{Name: strPtr("Paint shop")}))
}

func TestValidateSaveRuleSet(t *testing.T) {
	tests := []struct {
		name    string
		req     SaveRuleSetRequest
		wantErr string
	}{
		{
			name: "valid single rule",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("supplier", "equals", strPtr("Acme")),
					condReq("remark", "is_empty", nil),
				}},
			}},
		},
		{
			name: "empty rule set is a valid save",
			req:  SaveRuleSetRequest{Rules: []SaveRuleRequest{}},
		},
		{
			name: "unknown logic operator",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "XOR", Conditions: []SaveConditionRequest{
					condReq("supplier", "equals", strPtr("Acme")),
				}},
			}},
			wantErr: "invalid logic_operator",
		},
		{
			name: "rule without conditions",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "OR", Conditions: []SaveConditionRequest{}},
			}},
			wantErr: "at least one condition",
		},
		{
			name: "unknown column",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("serial_number", "equals", strPtr("X")),
				}},
			}},
			wantErr: "unknown column",
		},
		{
			name: "unknown operator",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("supplier", "matches_regex", strPtr(".*")),
				}},
			}},
			wantErr: "unknown operator",
		},
		{
			name: "value required but missing",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("supplier", "equals", nil),
				}},
			}},
			wantErr: "requires a value",
		},
		{
			name: "is_empty must not carry a value",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("remark", "is_empty", strPtr("x")),
				}},
			}},
			wantErr: "does not take a value",
		},
		{
			name: "is_not_empty must not carry a value",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "OR", Conditions: []SaveConditionRequest{
					condReq("remark", "is_not_empty", strPtr("")),
				}},
			}},
			wantErr: "does not take a value",
		},
		{
			name: "ordered operator on a text column",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("supplier", "greater_than", strPtr("10")),
				}},
			}},
			wantErr: "does not apply to column",
		},
		{
			name: "ordered operator with non numeric value",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("quantity", "greater_than", strPtr("many")),
				}},
			}},
			wantErr: "is not a number",
		},
		{
			name: "ordered operator with unparseable date",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("delivery_date", "less_than", strPtr("next week")),
				}},
			}},
			wantErr: "is not a date",
		},
		{
			name: "ordered operator with plain date value",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("delivery_date", "less_than", strPtr("2026-03-15")),
				}},
			}},
		},
		{
			name: "second rule carries the defect",
			req: SaveRuleSetRequest{Rules: []SaveRuleRequest{
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("supplier", "equals", strPtr("Acme")),
				}},
				{LogicOperator: "AND", Conditions: []SaveConditionRequest{
					condReq("supplier", "equals", nil),
				}},
			}},
			wantErr: "rules[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSaveRuleSet(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func validProfileRequest() CreateImportProfileRequest {
	return CreateImportProfileRequest{
		Name:   "Supplier CSV",
		Format: "csv",
		ColumnMappings: []ColumnMapping{
			{Source: "Artikel", Target: "article_code", Required: true},
			{Source: "Lieferant", Target: "supplier"},
		},
	}
}

func TestValidateImportProfile(t *testing.T) {
	assert.NoError(t, ValidateImportProfile(validProfileRequest()))

	noName := validProfileRequest()
	noName.Name = ""
	assert.ErrorContains(t, ValidateImportProfile(noName), "name is required")

	badFormat := validProfileRequest()
	badFormat.Format = "xml"
	assert.ErrorContains(t, ValidateImportProfile(badFormat), "invalid format")

	badDelimiter := validProfileRequest()
	badDelimiter.Delimiter = "||"
	assert.ErrorContains(t, ValidateImportProfile(badDelimiter), "single character")

	noMappings := validProfileRequest()
	noMappings.ColumnMappings = nil
	assert.ErrorContains(t, ValidateImportProfile(noMappings), "column_mappings cannot be empty")

	noSource := validProfileRequest()
	noSource.ColumnMappings[0].Source = ""
	assert.ErrorContains(t, ValidateImportProfile(noSource), "source is required")

	badTarget := validProfileRequest()
	badTarget.ColumnMappings[0].Target = "serial_number"
	assert.ErrorContains(t, ValidateImportProfile(badTarget), "unknown target column")

	duplicate := validProfileRequest()
	duplicate.ColumnMappings[1].Target = "article_code"
	assert.ErrorContains(t, ValidateImportProfile(duplicate), "duplicate target column")
}

func TestValidateImportProfileExpressions(t *testing.T) {
	withExpr := validProfileRequest()
	withExpr.ColumnMappings[0].Expression = `value.trim().upperAscii()`
	assert.NoError(t, ValidateImportProfile(withExpr))

	rowExpr := validProfileRequest()
	rowExpr.ColumnMappings[0].Expression = `row["Prefix"] + "-" + value`
	assert.NoError(t, ValidateImportProfile(rowExpr))

	broken := validProfileRequest()
	broken.ColumnMappings[0].Expression = `value.trim(`
	assert.ErrorContains(t, ValidateImportProfile(broken), "invalid CEL expression")

	wrongType := validProfileRequest()
	wrongType.ColumnMappings[0].Expression = `size(value)`
	assert.ErrorContains(t, ValidateImportProfile(wrongType), "invalid CEL expression")
}

func TestValidateUpdateImportProfile(t *testing.T) {
	assert.NoError(t, ValidateUpdateImportProfile(UpdateImportProfileRequest{}))
	assert.ErrorContains(t, ValidateUpdateImportProfile(UpdateImportProfileRequest{Name: strPtr("")}), "name cannot be empty")
	assert.ErrorContains(t, ValidateUpdateImportProfile(UpdateImportProfileRequest{Format: strPtr("json")}), "invalid format")

	empty := []ColumnMapping{}
	assert.ErrorContains(t, ValidateUpdateImportProfile(UpdateImportProfileRequest{ColumnMappings: &empty}), "column_mappings cannot be empty")

	valid := []ColumnMapping{{Source: "Menge", Target: "quantity"}}
	assert.NoError(t, ValidateUpdateImportProfile(UpdateImportProfileRequest{ColumnMappings: &valid}))
}
