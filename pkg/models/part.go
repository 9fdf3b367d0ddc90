package models

import (
	"strconv"
	"time"
)

// Part is a typed part record: one row of a supplier parts list after import
// validation. Field names follow the column catalog; rule conditions and
// import mappings may only reference those names.
type Part struct {
	ID                      string     `json:"id" db:"id"`
	ArticleCode             string     `json:"article_code" db:"article_code"`
	Description             string     `json:"description" db:"description"`
	Supplier                string     `json:"supplier" db:"supplier"`
	SupplierArticleCode     string     `json:"supplier_article_code" db:"supplier_article_code"`
	Manufacturer            string     `json:"manufacturer" db:"manufacturer"`
	ManufacturerArticleCode string     `json:"manufacturer_article_code" db:"manufacturer_article_code"`
	Location                string     `json:"location" db:"location"`
	OrderNumber             string     `json:"order_number" db:"order_number"`
	Unit                    string     `json:"unit" db:"unit"`
	Remark                  string     `json:"remark" db:"remark"`
	Quantity                *float64   `json:"quantity,omitempty" db:"quantity"`
	UnitPrice               *float64   `json:"unit_price,omitempty" db:"unit_price"`
	DeliveryDate            *time.Time `json:"delivery_date,omitempty" db:"delivery_date"`
	Source                  string     `json:"source,omitempty" db:"source"`
	BatchID                 string     `json:"batch_id,omitempty" db:"batch_id"`
	CreatedAt               time.Time  `json:"created_at" db:"created_at"`
}

// FieldValue is one part field as the evaluator sees it. Text is the string
// rendering (empty when the field is absent or null); Number/Date are set
// only for columns of the matching kind.
type FieldValue struct {
	Text   string
	Number *float64
	Date   *time.Time
}

// DateLayout is the rendering used for date fields when they are compared
// as strings.
const DateLayout = "2006-01-02"

// Field resolves a catalog column name against the record. The second
// return is false for names outside the catalog; absent or null fields
// resolve to an empty Text.
func (p *Part) Field(name string) (FieldValue, bool) {
	switch name {
	case "article_code":
		return FieldValue{Text: p.ArticleCode}, true
	case "description":
		return FieldValue{Text: p.Description}, true
	case "supplier":
		return FieldValue{Text: p.Supplier}, true
	case "supplier_article_code":
		return FieldValue{Text: p.SupplierArticleCode}, true
	case "manufacturer":
		return FieldValue{Text: p.Manufacturer}, true
	case "manufacturer_article_code":
		return FieldValue{Text: p.ManufacturerArticleCode}, true
	case "location":
		return FieldValue{Text: p.Location}, true
	case "order_number":
		return FieldValue{Text: p.OrderNumber}, true
	case "unit":
		return FieldValue{Text: p.Unit}, true
	case "remark":
		return FieldValue{Text: p.Remark}, true
	case "quantity":
		return numberField(p.Quantity), true
	case "unit_price":
		return numberField(p.UnitPrice), true
	case "delivery_date":
		return dateField(p.DeliveryDate), true
	default:
		return FieldValue{}, false
	}
}

func numberField(v *float64) FieldValue {
	if v == nil {
		return FieldValue{}
	}
	return FieldValue{
		Text:   strconv.FormatFloat(*v, 'f', -1, 64),
		Number: v,
	}
}

func dateField(v *time.Time) FieldValue {
	if v == nil {
		return FieldValue{}
	}
	return FieldValue{
		Text: v.Format(DateLayout),
		Date: v,
	}
}
