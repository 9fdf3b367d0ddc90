package tracking

import (
	"context"
	"strconv"
	"strings"
	"time"

	"parttrack/internal/catalog"
	"parttrack/internal/logger"
	"parttrack/pkg/models"
)

// Evaluator decides whether a part matches tracking conditions. Evaluation
// is pure and never fails: a condition that cannot be evaluated (unknown
// column or operator, missing or unparseable value) counts as not matched
// and is logged as a configuration problem, so one bad condition cannot
// take down unrelated rule groups.
type Evaluator struct {
	logger logger.Logger
}

func NewEvaluator(log logger.Logger) *Evaluator {
	return &Evaluator{logger: log}
}

// ShouldTrack reports whether any rule in the set matches the part. Rules
// combine with OR across groups; the first matching rule id is returned.
// An empty rule set never matches: no rules configured means nothing is
// tracked, which keeps "untracked" distinct from "matches everything".
func (e *Evaluator) ShouldTrack(ctx context.Context, ruleSet *RuleSet, part *models.Part) (bool, string) {
	if ruleSet == nil {
		return false, ""
	}

	for _, rule := range ruleSet.Rules {
		if e.EvaluateRule(ctx, rule, part) {
			return true, rule.ID
		}
	}

	return false, ""
}

// EvaluateRule combines the rule's conditions with its logic operator.
// A rule without conditions never matches.
func (e *Evaluator) EvaluateRule(ctx context.Context, rule Rule, part *models.Part) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	switch rule.LogicOperator {
	case catalog.LogicAnd:
		for _, cond := range rule.Conditions {
			if !e.EvaluateCondition(ctx, cond, part) {
				return false
			}
		}
		return true
	case catalog.LogicOr:
		for _, cond := range rule.Conditions {
			if e.EvaluateCondition(ctx, cond, part) {
				return true
			}
		}
		return false
	default:
		e.logger.WarnwCtx(ctx, "Rule has unknown logic operator, treating as no match",
			"rule_id", rule.ID,
			"logic_operator", rule.LogicOperator,
		)
		return false
	}
}

// EvaluateCondition tests one condition against one part field. String
// comparison is case-insensitive; an absent field behaves as an empty
// string. greater_than/less_than compare numerically or chronologically
// depending on the column kind.
func (e *Evaluator) EvaluateCondition(ctx context.Context, cond Condition, part *models.Part) bool {
	column, ok := catalog.FindColumn(cond.ColumnName)
	if !ok {
		e.logger.WarnwCtx(ctx, "Condition references unknown column, treating as no match",
			"condition_id", cond.ID,
			"column_name", cond.ColumnName,
		)
		return false
	}

	if !catalog.IsOperator(cond.Operator) {
		e.logger.WarnwCtx(ctx, "Condition references unknown operator, treating as no match",
			"condition_id", cond.ID,
			"column_name", cond.ColumnName,
			"operator", cond.Operator,
		)
		return false
	}

	field, _ := part.Field(cond.ColumnName)

	switch cond.Operator {
	case catalog.OpIsEmpty:
		return isBlank(field.Text)
	case catalog.OpIsNotEmpty:
		return !isBlank(field.Text)
	}

	if cond.Value == nil {
		e.logger.WarnwCtx(ctx, "Condition is missing its comparison value, treating as no match",
			"condition_id", cond.ID,
			"column_name", cond.ColumnName,
			"operator", cond.Operator,
		)
		return false
	}

	fieldText := strings.ToLower(field.Text)
	condValue := strings.ToLower(*cond.Value)

	switch cond.Operator {
	case catalog.OpEquals:
		return fieldText == condValue
	case catalog.OpNotEquals:
		return fieldText != condValue
	case catalog.OpContains:
		return strings.Contains(fieldText, condValue)
	case catalog.OpNotContains:
		return !strings.Contains(fieldText, condValue)
	case catalog.OpStartsWith:
		return strings.HasPrefix(fieldText, condValue)
	case catalog.OpEndsWith:
		return strings.HasSuffix(fieldText, condValue)
	case catalog.OpGreaterThan, catalog.OpLessThan:
		return e.evaluateOrdered(ctx, cond, column, field)
	}

	return false
}

func (e *Evaluator) evaluateOrdered(ctx context.Context, cond Condition, column catalog.Column, field models.FieldValue) bool {
	switch column.Kind {
	case catalog.KindNumber:
		if field.Number == nil {
			return false
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(*cond.Value), 64)
		if err != nil {
			e.logger.WarnwCtx(ctx, "Condition value is not numeric, treating as no match",
				"condition_id", cond.ID,
				"column_name", cond.ColumnName,
				"value", *cond.Value,
			)
			return false
		}
		if cond.Operator == catalog.OpGreaterThan {
			return *field.Number > threshold
		}
		return *field.Number < threshold

	case catalog.KindDate:
		if field.Date == nil {
			return false
		}
		threshold, err := parseConditionDate(*cond.Value)
		if err != nil {
			e.logger.WarnwCtx(ctx, "Condition value is not a date, treating as no match",
				"condition_id", cond.ID,
				"column_name", cond.ColumnName,
				"value", *cond.Value,
			)
			return false
		}
		if cond.Operator == catalog.OpGreaterThan {
			return field.Date.After(threshold)
		}
		return field.Date.Before(threshold)

	default:
		e.logger.WarnwCtx(ctx, "Ordered comparison on a text column, treating as no match",
			"condition_id", cond.ID,
			"column_name", cond.ColumnName,
			"operator", cond.Operator,
		)
		return false
	}
}

func parseConditionDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(models.DateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
