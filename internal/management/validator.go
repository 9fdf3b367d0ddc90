package management

import (
	"fmt"
	"strconv"
	"time"

	"parttrack/internal/catalog"
	"parttrack/internal/constants"
	"parttrack/pkg/cel"
	"parttrack/pkg/models"
)

func ValidateWorkstation(req CreateWorkstationRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func ValidateUpdateWorkstation(req UpdateWorkstationRequest) error {
	if req.Name != nil && *req.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

func ValidateSaveRuleSet(req SaveRuleSetRequest) error {
	for i, rule := range req.Rules {
		if !catalog.IsLogicOperator(rule.LogicOperator) {
			return fmt.Errorf("rules[%d]: invalid logic_operator: %s. Allowed: AND, OR", i, rule.LogicOperator)
		}
		if len(rule.Conditions) == 0 {
			return fmt.Errorf("rules[%d]: at least one condition is required", i)
		}
		for j, cond := range rule.Conditions {
			if err := validateCondition(cond); err != nil {
				return fmt.Errorf("rules[%d].conditions[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateCondition(cond SaveConditionRequest) error {
	column, ok := catalog.FindColumn(cond.ColumnName)
	if !ok {
		return fmt.Errorf("unknown column: %s", cond.ColumnName)
	}

	op, ok := catalog.FindOperator(cond.Operator)
	if !ok {
		return fmt.Errorf("unknown operator: %s", cond.Operator)
	}

	if !catalog.OperatorAppliesTo(op.Name, column.Kind) {
		return fmt.Errorf("operator %s does not apply to column %s", op.Name, column.Name)
	}

	if !op.RequiresValue {
		if cond.Value != nil {
			return fmt.Errorf("operator %s does not take a value", op.Name)
		}
		return nil
	}

	if cond.Value == nil {
		return fmt.Errorf("operator %s requires a value", op.Name)
	}

	switch cond.Operator {
	case catalog.OpGreaterThan, catalog.OpLessThan:
		return validateOrderedValue(column, *cond.Value)
	}

	return nil
}

func validateOrderedValue(column catalog.Column, value string) error {
	switch column.Kind {
	case catalog.KindNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("value %q is not a number", value)
		}
	case catalog.KindDate:
		if _, err := time.Parse(models.DateLayout, value); err != nil {
			if _, err := time.Parse(time.RFC3339, value); err != nil {
				return fmt.Errorf("value %q is not a date", value)
			}
		}
	}
	return nil
}

var validImportFormats = map[string]bool{
	constants.ImportFormatCSV:  true,
	constants.ImportFormatXLSX: true,
}

func ValidateImportProfile(req CreateImportProfileRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validImportFormats[req.Format] {
		return fmt.Errorf("invalid format: %s. Allowed: csv, xlsx", req.Format)
	}
	if req.Delimiter != "" && len([]rune(req.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	if len(req.ColumnMappings) == 0 {
		return fmt.Errorf("column_mappings cannot be empty")
	}

	return validateColumnMappings(req.ColumnMappings)
}

func ValidateUpdateImportProfile(req UpdateImportProfileRequest) error {
	if req.Name != nil && *req.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if req.Format != nil && !validImportFormats[*req.Format] {
		return fmt.Errorf("invalid format: %s. Allowed: csv, xlsx", *req.Format)
	}
	if req.Delimiter != nil && *req.Delimiter != "" && len([]rune(*req.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	if req.ColumnMappings != nil {
		if len(*req.ColumnMappings) == 0 {
			return fmt.Errorf("column_mappings cannot be empty")
		}
		return validateColumnMappings(*req.ColumnMappings)
	}
	return nil
}

func validateColumnMappings(mappings []ColumnMapping) error {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	seen := make(map[string]bool, len(mappings))
	for i, mapping := range mappings {
		if mapping.Source == "" {
			return fmt.Errorf("column_mappings[%d]: source is required", i)
		}
		if !catalog.IsColumn(mapping.Target) {
			return fmt.Errorf("column_mappings[%d]: unknown target column: %s", i, mapping.Target)
		}
		if seen[mapping.Target] {
			return fmt.Errorf("column_mappings[%d]: duplicate target column: %s", i, mapping.Target)
		}
		seen[mapping.Target] = true

		if mapping.Expression != "" {
			if err := evaluator.ValidateTransformExpression(mapping.Expression); err != nil {
				return fmt.Errorf("invalid CEL expression in column_mappings[%d]: %w", i, err)
			}
		}
	}
	return nil
}
