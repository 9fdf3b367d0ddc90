package catalog

// Logic operators joining the conditions inside one rule group.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// OperatorSpec describes one entry of the closed operator set: whether the
// operator takes a comparison value and which column kinds it applies to.
// is_empty/is_not_empty must NOT carry a value; every other operator must.
type OperatorSpec struct {
	Name          string       `json:"name"`
	Label         string       `json:"label"`
	RequiresValue bool         `json:"requires_value"`
	Kinds         []ColumnKind `json:"kinds"`
}

var allKinds = []ColumnKind{KindString, KindNumber, KindDate}
var orderedKinds = []ColumnKind{KindNumber, KindDate}

var operators = []OperatorSpec{
	{Name: OpEquals, Label: "equals", RequiresValue: true, Kinds: allKinds},
	{Name: OpNotEquals, Label: "does not equal", RequiresValue: true, Kinds: allKinds},
	{Name: OpContains, Label: "contains", RequiresValue: true, Kinds: allKinds},
	{Name: OpNotContains, Label: "does not contain", RequiresValue: true, Kinds: allKinds},
	{Name: OpStartsWith, Label: "starts with", RequiresValue: true, Kinds: allKinds},
	{Name: OpEndsWith, Label: "ends with", RequiresValue: true, Kinds: allKinds},
	{Name: OpIsEmpty, Label: "is empty", RequiresValue: false, Kinds: allKinds},
	{Name: OpIsNotEmpty, Label: "is not empty", RequiresValue: false, Kinds: allKinds},
	{Name: OpGreaterThan, Label: "is greater than", RequiresValue: true, Kinds: orderedKinds},
	{Name: OpLessThan, Label: "is less than", RequiresValue: true, Kinds: orderedKinds},
}

var operatorsByName = func() map[string]OperatorSpec {
	m := make(map[string]OperatorSpec, len(operators))
	for _, op := range operators {
		m[op.Name] = op
	}
	return m
}()

func Operators() []OperatorSpec {
	out := make([]OperatorSpec, len(operators))
	copy(out, operators)
	return out
}

func FindOperator(name string) (OperatorSpec, bool) {
	op, ok := operatorsByName[name]
	return op, ok
}

func IsOperator(name string) bool {
	_, ok := operatorsByName[name]
	return ok
}

func IsLogicOperator(name string) bool {
	return name == LogicAnd || name == LogicOr
}

// OperatorAppliesTo reports whether the operator is usable on a column of
// the given kind.
func OperatorAppliesTo(name string, kind ColumnKind) bool {
	op, ok := operatorsByName[name]
	if !ok {
		return false
	}
	for _, k := range op.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
