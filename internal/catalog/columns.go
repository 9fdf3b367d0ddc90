package catalog

// ColumnKind drives how condition values are compared and how imported
// cells are validated at the data-access boundary.
type ColumnKind string

const (
	KindString ColumnKind = "string"
	KindNumber ColumnKind = "number"
	KindDate   ColumnKind = "date"
)

// Column is one entry of the closed set of part-record fields. The set is
// what rule conditions may reference and what import profiles may map to;
// anything outside it is rejected by validation and treated as inert by the
// evaluator.
type Column struct {
	Name  string     `json:"name"`
	Label string     `json:"label"`
	Kind  ColumnKind `json:"kind"`
}

var columns = []Column{
	{Name: "article_code", Label: "Article code", Kind: KindString},
	{Name: "description", Label: "Description", Kind: KindString},
	{Name: "supplier", Label: "Supplier", Kind: KindString},
	{Name: "supplier_article_code", Label: "Supplier article code", Kind: KindString},
	{Name: "manufacturer", Label: "Manufacturer", Kind: KindString},
	{Name: "manufacturer_article_code", Label: "Manufacturer article code", Kind: KindString},
	{Name: "location", Label: "Location", Kind: KindString},
	{Name: "order_number", Label: "Order number", Kind: KindString},
	{Name: "unit", Label: "Unit", Kind: KindString},
	{Name: "remark", Label: "Remark", Kind: KindString},
	{Name: "quantity", Label: "Quantity", Kind: KindNumber},
	{Name: "unit_price", Label: "Unit price", Kind: KindNumber},
	{Name: "delivery_date", Label: "Delivery date", Kind: KindDate},
}

var columnsByName = func() map[string]Column {
	m := make(map[string]Column, len(columns))
	for _, c := range columns {
		m[c.Name] = c
	}
	return m
}()

// Columns returns the catalog in its display order.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

func FindColumn(name string) (Column, bool) {
	c, ok := columnsByName[name]
	return c, ok
}

func IsColumn(name string) bool {
	_, ok := columnsByName[name]
	return ok
}
