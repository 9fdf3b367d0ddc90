package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"parttrack/internal/constants"
)

// ParseRows reads the uploaded file into rows according to the profile's
// format settings. Structural problems (unreadable file, too many rows) are
// returned as errors and fail the whole batch; cell-level problems are left
// to the transformer.
func ParseRows(profile Profile, r io.Reader, maxRows int) ([]Row, error) {
	switch profile.Format {
	case constants.ImportFormatCSV:
		return parseCSV(profile, r, maxRows)
	case constants.ImportFormatXLSX:
		return parseXLSX(profile, r, maxRows)
	default:
		return nil, fmt.Errorf("unsupported import format: %s", profile.Format)
	}
}

func parseCSV(profile Profile, r io.Reader, maxRows int) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiterRune(profile.Delimiter)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []Row
	var keys []string
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		// The reader swallows blank lines, so row numbers come from the
		// field position rather than a record counter.
		lineNumber, _ := reader.FieldPos(0)

		if first {
			first = false
			if profile.HasHeaderRow {
				keys = headerKeys(record)
				continue
			}
		}
		if keys == nil {
			keys = indexKeys(len(record))
		}

		if isEmptyRecord(record) {
			continue
		}

		rows = append(rows, Row{Number: lineNumber, Cells: recordCells(keys, record)})
		if len(rows) > maxRows {
			return nil, fmt.Errorf("file exceeds the row limit of %d", maxRows)
		}
	}

	return rows, nil
}

func parseXLSX(profile Profile, r io.Reader, maxRows int) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	var rows []Row
	var keys []string

	for i, record := range records {
		lineNumber := i + 1

		if lineNumber == 1 && profile.HasHeaderRow {
			keys = headerKeys(record)
			continue
		}
		if keys == nil {
			keys = indexKeys(len(record))
		}

		if isEmptyRecord(record) {
			continue
		}

		rows = append(rows, Row{Number: lineNumber, Cells: recordCells(keys, record)})
		if len(rows) > maxRows {
			return nil, fmt.Errorf("file exceeds the row limit of %d", maxRows)
		}
	}

	return rows, nil
}

func delimiterRune(delimiter string) rune {
	if delimiter == "" {
		return ','
	}
	return []rune(delimiter)[0]
}

func headerKeys(record []string) []string {
	keys := make([]string, len(record))
	for i, cell := range record {
		keys[i] = strings.TrimSpace(cell)
	}
	return keys
}

// indexKeys names headerless columns "1", "2", ... so profile mappings can
// address them by position.
func indexKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = strconv.Itoa(i + 1)
	}
	return keys
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// recordCells zips keys with cells. Excel drops trailing empty cells, so a
// record may be shorter than the header; missing cells read as empty. Cells
// beyond the keyed width get index keys so mappings by position still work.
func recordCells(keys []string, record []string) map[string]string {
	cells := make(map[string]string, len(keys))
	for i, key := range keys {
		if key == "" {
			continue
		}
		if i < len(record) {
			cells[key] = record[i]
		} else {
			cells[key] = ""
		}
	}
	for i := len(keys); i < len(record); i++ {
		cells[strconv.Itoa(i+1)] = record[i]
	}
	return cells
}
