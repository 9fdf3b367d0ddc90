package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"parttrack/internal/catalog"
	"parttrack/pkg/cel"
	"parttrack/pkg/models"
)

// Transformer turns parsed rows into typed part records by applying the
// profile's column mappings and transform expressions.
type Transformer struct {
	evaluator *cel.Evaluator
}

func NewTransformer() (*Transformer, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	return &Transformer{evaluator: evaluator}, nil
}

// BuildPart maps one row onto a part. The returned values map holds the
// final text per target column and feeds the duplicate check. Any row error
// disqualifies the whole row; there are no partial imports.
func (t *Transformer) BuildPart(ctx context.Context, profile Profile, row Row) (models.Part, map[string]string, []RowError) {
	var part models.Part
	var rowErrors []RowError
	values := make(map[string]string, len(profile.ColumnMappings))

	for _, mapping := range profile.ColumnMappings {
		text := strings.TrimSpace(row.Cells[mapping.Source])

		if mapping.Expression != "" {
			transformed, err := t.evaluator.EvaluateTransform(ctx, mapping.Expression, text, row.Cells)
			if err != nil {
				rowErrors = append(rowErrors, RowError{
					Row:     row.Number,
					Column:  mapping.Source,
					Message: fmt.Sprintf("transform failed: %v", err),
				})
				continue
			}
			text = strings.TrimSpace(transformed)
		}

		if text == "" {
			if mapping.Required {
				rowErrors = append(rowErrors, RowError{
					Row:     row.Number,
					Column:  mapping.Source,
					Message: fmt.Sprintf("required column %s is empty", mapping.Target),
				})
			}
			continue
		}

		if err := applyColumn(&part, mapping.Target, text); err != nil {
			rowErrors = append(rowErrors, RowError{
				Row:     row.Number,
				Column:  mapping.Source,
				Message: err.Error(),
			})
			continue
		}
		values[mapping.Target] = text
	}

	return part, values, rowErrors
}

// applyColumn writes one text value into its typed part field. Targets are
// validated against the catalog when the profile is saved, so an unknown
// name here means the catalog shrank after the profile was written.
func applyColumn(part *models.Part, name string, text string) error {
	column, ok := catalog.FindColumn(name)
	if !ok {
		return fmt.Errorf("unknown target column: %s", name)
	}

	switch column.Kind {
	case catalog.KindNumber:
		number, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("value %q is not a number for column %s", text, name)
		}
		switch name {
		case "quantity":
			part.Quantity = &number
		case "unit_price":
			part.UnitPrice = &number
		}
		return nil
	case catalog.KindDate:
		date, err := parseDate(text)
		if err != nil {
			return fmt.Errorf("value %q is not a date for column %s", text, name)
		}
		part.DeliveryDate = &date
		return nil
	}

	switch name {
	case "article_code":
		part.ArticleCode = text
	case "description":
		part.Description = text
	case "supplier":
		part.Supplier = text
	case "supplier_article_code":
		part.SupplierArticleCode = text
	case "manufacturer":
		part.Manufacturer = text
	case "manufacturer_article_code":
		part.ManufacturerArticleCode = text
	case "location":
		part.Location = text
	case "order_number":
		part.OrderNumber = text
	case "unit":
		part.Unit = text
	case "remark":
		part.Remark = text
	}
	return nil
}

func parseDate(text string) (time.Time, error) {
	if date, err := time.Parse(models.DateLayout, text); err == nil {
		return date, nil
	}
	if date, err := time.Parse("02.01.2006", text); err == nil {
		return date, nil
	}
	return time.Parse(time.RFC3339, text)
}
