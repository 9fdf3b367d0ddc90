package cel

// TransformExpressionExamples documents the expression shapes the import UI
// offers as templates. Every example returns a string.
var TransformExpressionExamples = map[string]string{
	"trim":            `value.trim()`,
	"uppercase":       `value.upperAscii()`,
	"lowercase":       `value.lowerAscii()`,
	"strip_prefix":    `value.startsWith("ART-") ? value.substring(4) : value`,
	"replace_comma":   `value.replace(",", ".")`,
	"default_value":   `value == "" ? "unknown" : value`,
	"combine_columns": `row["Hersteller"] + " " + value`,
	"conditional":     `row["Einheit"] == "stk" ? "pcs" : value`,
	"format":          `"%s-%s".format([row["Werk"], value])`,
}
