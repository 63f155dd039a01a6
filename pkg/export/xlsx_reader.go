package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxSerial is the spreadsheet serial of 9999-12-31.
const maxSerial = 2958465

var textDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Table is the raw content of the first worksheet: a header row and the data
// rows padded to the header width. Values are unformatted, so date cells
// come back as serial numbers. Numeric mirrors Rows and marks cells stored
// as numbers, as opposed to text that merely looks numeric.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
	Numeric [][]bool
}

// IsNumeric reports whether the cell at row, col was stored as a number.
func (t *Table) IsNumeric(row, col int) bool {
	if t == nil || row < 0 || row >= len(t.Numeric) || col < 0 || col >= len(t.Numeric[row]) {
		return false
	}
	return t.Numeric[row][col]
}

// ReadWorkbookFile reads the first worksheet of an .xlsx file.
func ReadWorkbookFile(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return readTable(f)
}

// ReadWorkbook reads the first worksheet of an .xlsx stream.
func ReadWorkbook(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return readTable(f)
}

func readTable(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	table := &Table{Sheet: sheet, Headers: uniqueHeaders(rows[0])}
	width := len(table.Headers)
	for r, row := range rows[1:] {
		values := make([]string, width)
		numeric := make([]bool, width)
		for i := 0; i < width && i < len(row); i++ {
			values[i] = strings.TrimSpace(row[i])
			if values[i] == "" {
				continue
			}
			kind, err := f.GetCellType(sheet, CellRef(i+1, r+2))
			if err != nil {
				return nil, fmt.Errorf("read cell type %s: %w", CellRef(i+1, r+2), err)
			}
			numeric[i] = isNumericCell(kind)
		}
		table.Rows = append(table.Rows, values)
		table.Numeric = append(table.Numeric, numeric)
	}
	return table, nil
}

// Cells without a type attribute hold numbers in SpreadsheetML.
func isNumericCell(kind excelize.CellType) bool {
	switch kind {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		return true
	}
	return false
}

// uniqueHeaders trims headers and suffixes repeats with .1, .2, ...
func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	headers := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		headers[i] = name
	}
	return headers
}

// ParseDateCell converts a raw cell value into a calendar date. Numeric values
// are 1900-system serials; text accepts common y/m/d layouts. Anything else
// is reported as absent.
func ParseDateCell(raw string) (*time.Time, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}
	if serial, err := strconv.ParseFloat(text, 64); err == nil {
		if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
			return nil, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil, false
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, true
	}
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, true
		}
	}
	return nil, false
}
