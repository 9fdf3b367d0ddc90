package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func csvProfile(delimiter string, hasHeader bool) Profile {
	return Profile{
		ID:           "profile-1",
		Name:         "Supplier CSV",
		Format:       "csv",
		Delimiter:    delimiter,
		HasHeaderRow: hasHeader,
	}
}

func TestParseCSVWithHeader(t *testing.T) {
	content := "Artikel;Lieferant;Menge\nART-1;Acme;10\nART-2;Bolt & Co;2,5\n"

	rows, err := ParseRows(csvProfile(";", true), strings.NewReader(content), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "ART-1", rows[0].Cells["Artikel"])
	assert.Equal(t, "Acme", rows[0].Cells["Lieferant"])
	assert.Equal(t, "10", rows[0].Cells["Menge"])

	assert.Equal(t, 3, rows[1].Number)
	assert.Equal(t, "2,5", rows[1].Cells["Menge"])
}

func TestParseCSVDefaultDelimiter(t *testing.T) {
	content := "Artikel,Lieferant\nART-1,Acme\n"

	rows, err := ParseRows(csvProfile("", true), strings.NewReader(content), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].Cells["Lieferant"])
}

func TestParseCSVWithoutHeader(t *testing.T) {
	content := "ART-1;Acme;10\nART-2;Bolt;3\n"

	rows, err := ParseRows(csvProfile(";", false), strings.NewReader(content), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "ART-1", rows[0].Cells["1"])
	assert.Equal(t, "Acme", rows[0].Cells["2"])
	assert.Equal(t, "10", rows[0].Cells["3"])
}

func TestParseCSVSkipsEmptyLines(t *testing.T) {
	content := "Artikel;Lieferant\nART-1;Acme\n;\n\nART-2;Bolt\n"

	rows, err := ParseRows(csvProfile(";", true), strings.NewReader(content), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ART-1", rows[0].Cells["Artikel"])
	assert.Equal(t, "ART-2", rows[1].Cells["Artikel"])
	assert.Equal(t, 5, rows[1].Number)
}

func TestParseCSVShortRecord(t *testing.T) {
	content := "Artikel;Lieferant;Menge\nART-1;Acme\n"

	rows, err := ParseRows(csvProfile(";", true), strings.NewReader(content), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Cells["Menge"])
}

func TestParseCSVRowLimit(t *testing.T) {
	content := "Artikel\nART-1\nART-2\nART-3\n"

	_, err := ParseRows(csvProfile(";", true), strings.NewReader(content), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row limit")
}

func TestParseRowsUnsupportedFormat(t *testing.T) {
	profile := Profile{Format: "json"}
	_, err := ParseRows(profile, strings.NewReader("{}"), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported import format")
}

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseXLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Artikel", "Lieferant", "Menge"},
		{"ART-1", "Acme", 10},
		{"ART-2", "Bolt & Co", 2.5},
	})

	profile := Profile{Format: "xlsx", HasHeaderRow: true}
	rows, err := ParseRows(profile, bytes.NewReader(buf.Bytes()), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "ART-1", rows[0].Cells["Artikel"])
	assert.Equal(t, "10", rows[0].Cells["Menge"])
	assert.Equal(t, "Bolt & Co", rows[1].Cells["Lieferant"])
}

func TestParseXLSXWithoutHeader(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"ART-1", "Acme"},
	})

	profile := Profile{Format: "xlsx", HasHeaderRow: false}
	rows, err := ParseRows(profile, bytes.NewReader(buf.Bytes()), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ART-1", rows[0].Cells["1"])
	assert.Equal(t, "Acme", rows[0].Cells["2"])
}

func TestParseXLSXGarbage(t *testing.T) {
	profile := Profile{Format: "xlsx", HasHeaderRow: true}
	_, err := ParseRows(profile, strings.NewReader("this is not a workbook"), 10)
	assert.Error(t, err)
}
