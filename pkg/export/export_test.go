package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSheet() Sheet {
	exp := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	return Sheet{
		Name:    "alerts",
		Headers: []string{"担当者コード", "氏名２", "満了年月日", "満了日数"},
		Rows: [][]Cell{
			{{Value: 1001}, {Value: "山田"}, {Value: exp, Date: true}, {Formula: "C2-DATE(2024,1,1)+1"}},
			{{Value: "A-2"}, {Value: nil}, {Value: nil, Date: true}, {Value: 12}},
		},
	}
}

func TestXLSXWriterRoundTrip(t *testing.T) {
	data, err := NewXLSXWriter().Render(sampleSheet())
	require.NoError(t, err)

	table, err := ReadWorkbook(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "alerts", table.Sheet)
	assert.Equal(t, []string{"担当者コード", "氏名２", "満了年月日", "満了日数"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1001", table.Rows[0][0])
	assert.Equal(t, "", table.Rows[1][1])
	assert.True(t, table.IsNumeric(0, 0))
	assert.False(t, table.IsNumeric(1, 0))
	assert.False(t, table.IsNumeric(0, 1))
	assert.False(t, table.IsNumeric(1, 1))
	assert.False(t, table.IsNumeric(5, 0))

	exp, ok := ParseDateCell(table.Rows[0][2])
	require.True(t, ok)
	assert.Equal(t, "2024-06-30", exp.Format("2006-01-02"))

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	formula, err := f.GetCellFormula("alerts", "D2")
	require.NoError(t, err)
	assert.Equal(t, "C2-DATE(2024,1,1)+1", formula)

	styleID, err := f.GetCellStyle("alerts", "C2")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.CustomNumFmt)
	assert.Equal(t, DateNumberFormat, *style.CustomNumFmt)
}

func TestXLSXWriterRequiresHeaders(t *testing.T) {
	_, err := NewXLSXWriter().Render(Sheet{})
	assert.Error(t, err)
}

func TestUniqueHeaders(t *testing.T) {
	assert.Equal(t, []string{"氏名", "氏名.1", "Unnamed: 2", "氏名.2"}, uniqueHeaders([]string{" 氏名 ", "氏名", "", "氏名"}))
}

func TestParseDateCell(t *testing.T) {
	cases := map[string]string{
		"45473":               "2024-06-30",
		"45473.75":            "2024-06-30",
		"2024-06-30":          "2024-06-30",
		"2024/6/30":           "2024-06-30",
		"2024/06/30 00:00:00": "2024-06-30",
	}
	for raw, want := range cases {
		got, ok := ParseDateCell(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got.Format("2006-01-02"), raw)
	}
	for _, raw := range []string{"", "n/a", "-3", "99999999"} {
		_, ok := ParseDateCell(raw)
		assert.False(t, ok, raw)
	}
}

func TestSheetDataset(t *testing.T) {
	data := sampleSheet().Dataset()
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "1001", data.Rows[0]["担当者コード"])
	assert.Equal(t, "2024/06/30", data.Rows[0]["満了年月日"])
	assert.Equal(t, "", data.Rows[0]["満了日数"])
	assert.Equal(t, "12", data.Rows[1]["満了日数"])
}

func TestCSVExporterWritesBOM(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleSheet().Dataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	body := string(out[len(utf8BOM):])
	assert.True(t, strings.HasPrefix(body, "担当者コード,氏名２,満了年月日,満了日数\r\n"))
	assert.Contains(t, body, "1001,山田,2024/06/30,\r\n")
}

func TestPDFExporterWithoutFont(t *testing.T) {
	out, err := NewPDFExporter("").Render(sampleSheet().Dataset(), "Alert list")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "A?B", latin1("A山B"))
}

func TestCellRef(t *testing.T) {
	assert.Equal(t, "A2", CellRef(1, 2))
	assert.Equal(t, "AA10", CellRef(27, 10))
	assert.Equal(t, "", CellRef(0, 1))
}

func TestCSVExporterNeutralizesFormulaText(t *testing.T) {
	data := Dataset{
		Headers: []string{"name", "days"},
		Rows: []map[string]string{
			{"name": "=HYPERLINK(\"x\")", "days": "-12"},
			{"name": "@mention", "days": "+3"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	body := string(out[len(utf8BOM):])
	assert.Contains(t, body, "\"'=HYPERLINK(\"\"x\"\")\",-12\r\n")
	assert.Contains(t, body, "'@mention,+3\r\n")
}
