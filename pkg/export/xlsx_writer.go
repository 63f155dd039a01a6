package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateNumberFormat displays date cells as zero-padded year/month/day.
const DateNumberFormat = "yyyy/mm/dd;@"

// Cell is one typed spreadsheet cell. A non-empty Formula takes precedence
// over Value; a nil Value leaves the cell blank.
type Cell struct {
	Value   interface{}
	Formula string
	Date    bool
}

// Sheet is a single worksheet with a header row.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]Cell
}

// XLSXWriter renders sheets into Office Open XML workbooks.
type XLSXWriter struct{}

// NewXLSXWriter builds a workbook writer.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// Render returns the workbook bytes for the sheet.
func (w *XLSXWriter) Render(sheet Sheet) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := w.Write(buf, sheet); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the workbook for the sheet to out.
func (w *XLSXWriter) Write(out io.Writer, sheet Sheet) error {
	if len(sheet.Headers) == 0 {
		return fmt.Errorf("xlsx requires at least one header")
	}
	name := sheet.Name
	if name == "" {
		name = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(DateNumberFormat)})
	if err != nil {
		return fmt.Errorf("create date style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range sheet.Headers {
		ref, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(name, ref, header); err != nil {
			return fmt.Errorf("write header %s: %w", header, err)
		}
		if err := f.SetCellStyle(name, ref, ref, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range sheet.Rows {
		for c, cell := range row {
			if c >= len(sheet.Headers) {
				break
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := writeCell(f, name, ref, cell); err != nil {
				return fmt.Errorf("write %s: %w", ref, err)
			}
			if cell.Date {
				if err := f.SetCellStyle(name, ref, ref, dateStyle); err != nil {
					return err
				}
			}
		}
	}

	if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if err := f.Write(out); err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	return nil
}

func writeCell(f *excelize.File, sheet, ref string, cell Cell) error {
	if cell.Formula != "" {
		return f.SetCellFormula(sheet, ref, cell.Formula)
	}
	switch v := cell.Value.(type) {
	case nil:
		return nil
	case time.Time:
		y, m, d := v.Date()
		return f.SetCellValue(sheet, ref, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	case *time.Time:
		if v == nil {
			return nil
		}
		return writeCell(f, sheet, ref, Cell{Value: *v, Date: cell.Date})
	default:
		return f.SetCellValue(sheet, ref, v)
	}
}

// Dataset flattens the sheet into the string rows used by the CSV and PDF exporters.
func (s Sheet) Dataset() Dataset {
	data := Dataset{Headers: append([]string(nil), s.Headers...), Rows: make([]map[string]string, 0, len(s.Rows))}
	for _, row := range s.Rows {
		values := make(map[string]string, len(s.Headers))
		for i, header := range s.Headers {
			if i < len(row) {
				values[header] = row[i].String()
			}
		}
		data.Rows = append(data.Rows, values)
	}
	return data
}

// String renders the literal value of a cell; formulas are not evaluated.
func (c Cell) String() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006/01/02")
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format("2006/01/02")
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func stringPtr(s string) *string {
	return &s
}

// CellRef returns the A1 reference of a 1-based column and row.
func CellRef(col, row int) string {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	return ref
}
