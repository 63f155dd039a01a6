package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/permit-deadline-api/internal/models"
	"github.com/noah-isme/permit-deadline-api/internal/permit"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
	"github.com/noah-isme/permit-deadline-api/pkg/export"
)

var rosterHeaders = []string{
	models.ColumnStaffCode,
	models.ColumnName2,
	models.ColumnPermitStatus,
	models.ColumnCohort,
	models.ColumnPermissionDate,
	models.ColumnExpirationDate,
	models.ColumnPriorElapsedDays,
	models.ThresholdColumn(1),
	models.ThresholdColumn(2),
	models.ThresholdColumn(3),
	models.ColumnSkill1Limit,
	"備考",
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rosterRows() [][]export.Cell {
	return [][]export.Cell{
		{{Value: 1001}, {Value: "Alice"}, {Value: "特定技能１号"}, {Value: "12"}, {Value: day(2024, 1, 1), Date: true}, {Value: day(2024, 1, 10), Date: true}, {Value: 5}, {Value: 90}, {Value: 60}, {Value: 30}, {Value: 1826}, {Value: "renewal"}},
		{{Value: 1002}, {Value: "Bob"}, {Value: "技能実習2号ロ"}, {Value: "13期"}, {Value: day(2023, 4, 1), Date: true}, {Value: day(2024, 6, 30), Date: true}, {}, {Value: 90}, {Value: 60}, {Value: 30}, {}, {}},
		{{Value: "X-3"}, {Value: "Chen"}, {Value: "留学"}, {}, {Value: day(2023, 4, 1), Date: true}, {Value: day(2024, 7, 1), Date: true}, {}, {Value: "abc"}, {Value: 60}, {Value: 30}, {}, {}},
	}
}

func writeRoster(t *testing.T, dir, name string, headers []string, rows [][]export.Cell) string {
	t.Helper()
	data, err := export.NewXLSXWriter().Render(export.Sheet{Name: "Sheet1", Headers: headers, Rows: rows})
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestWorkbookService(dir string) *WorkbookService {
	svc := NewWorkbookService(WorkbookServiceConfig{Dir: dir, DefaultFile: "roster.xlsx"}, nil, nil, nil, NewMetricsService(), nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 16, 10, 30, 0, 0, time.UTC) }
	return svc
}

func requireAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestWorkbookServiceLoad(t *testing.T) {
	dir := t.TempDir()
	writeRoster(t, dir, "roster.xlsx", rosterHeaders, rosterRows())
	svc := newTestWorkbookService(dir)

	ds, err := svc.Load(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, models.ColumnExpirationDate, ds.ExpirationColumn)
	assert.True(t, ds.HasColumn(models.ColumnElapsedDays))
	assert.True(t, ds.HasColumn(models.DeadlineColumn(3)))
	assert.Equal(t, filepath.Join(dir, "roster.xlsx"), ds.SourcePath)

	alice := ds.Records[0]
	assert.Equal(t, "1001", alice.StaffCode)
	assert.Equal(t, "特定技能1号", alice.PermitStatus)
	require.NotNil(t, alice.ElapsedDays)
	assert.Equal(t, 15, *alice.ElapsedDays)
	require.NotNil(t, alice.Deadlines[0])
	assert.Equal(t, "2023-10-12", alice.Deadlines[0].Format(permit.ISODateLayout))
	require.NotNil(t, alice.Skill1Limit)
	assert.Equal(t, 1826.0, *alice.Skill1Limit)
	assert.Equal(t, "renewal", alice.Extra["備考"])

	assert.Nil(t, ds.Records[1].ElapsedDays)
	assert.Nil(t, ds.Records[2].Thresholds[0])
	assert.Nil(t, ds.Records[2].Deadlines[0])
	require.NotNil(t, ds.Records[2].Deadlines[1])
}

func TestWorkbookServiceLoadMissingExpirationColumn(t *testing.T) {
	dir := t.TempDir()
	writeRoster(t, dir, "roster.xlsx", []string{models.ColumnStaffCode, models.ColumnSkill1Limit}, [][]export.Cell{{{Value: 1}, {Value: 2}}})

	_, err := newTestWorkbookService(dir).Load(context.Background(), "roster.xlsx")
	appErr := requireAppError(t, err, appErrors.ErrMissingColumn.Code)
	assert.Contains(t, appErr.Message, models.ColumnExpirationDate)
}

func TestWorkbookServiceLoadAcceptsExpirationAlias(t *testing.T) {
	dir := t.TempDir()
	headers := []string{models.ColumnPermitStatus, "満了日", models.ColumnSkill1Limit}
	writeRoster(t, dir, "roster.xlsx", headers, [][]export.Cell{{{Value: "留学"}, {Value: day(2024, 7, 1), Date: true}, {}}})

	ds, err := newTestWorkbookService(dir).Load(context.Background(), "roster.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "満了日", ds.ExpirationColumn)
	require.NotNil(t, ds.Records[0].ExpirationDate)
}

func TestWorkbookServiceLoadRequiresSkill1Limit(t *testing.T) {
	dir := t.TempDir()
	headers := []string{models.ColumnPermitStatus, models.ColumnExpirationDate}
	writeRoster(t, dir, "roster.xlsx", headers, [][]export.Cell{{{Value: "留学"}, {Value: day(2024, 7, 1), Date: true}}})

	_, err := newTestWorkbookService(dir).Load(context.Background(), "roster.xlsx")
	appErr := requireAppError(t, err, appErrors.ErrMissingColumn.Code)
	assert.Contains(t, appErr.Message, models.ColumnSkill1Limit)
}

func TestWorkbookServiceLoadSkill1RowWithoutLimit(t *testing.T) {
	dir := t.TempDir()
	rows := rosterRows()
	rows[1][2] = export.Cell{Value: "特定技能1号"}
	writeRoster(t, dir, "roster.xlsx", rosterHeaders, rows)

	_, err := newTestWorkbookService(dir).Load(context.Background(), "roster.xlsx")
	appErr := requireAppError(t, err, appErrors.ErrRowInvalid.Code)
	assert.Contains(t, appErr.Message, "row 3")
}

func TestWorkbookServiceResolve(t *testing.T) {
	dir := t.TempDir()
	svc := newTestWorkbookService(dir)

	_, err := svc.Resolve("../outside.xlsx")
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Resolve("roster.csv")
	requireAppError(t, err, appErrors.ErrValidation.Code)

	full, err := svc.Resolve("sub/roster.xlsx")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(full, filepath.Join("sub", "roster.xlsx")))

	_, err = svc.Load(context.Background(), "missing.xlsx")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestWorkbookServiceSaveProcessedWritesFormulas(t *testing.T) {
	dir := t.TempDir()
	writeRoster(t, dir, "roster.xlsx", rosterHeaders, rosterRows())
	svc := newTestWorkbookService(dir)
	ctx := context.Background()

	ds, err := svc.Load(ctx, "roster.xlsx")
	require.NoError(t, err)

	result, err := svc.SaveProcessed(ctx, ds, "")
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "roster_processed.xlsx", result.Filename)

	f, err := excelize.OpenFile(result.Path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)

	// Appended derived columns: M elapsed days, N..P deadlines.
	elapsed, err := f.GetCellFormula(sheet, "M2")
	require.NoError(t, err)
	want, ok := permit.ElapsedDaysFormula(permit.RowRefs{Status: "C2", Permission: "E2", Expiration: "F2", Prior: "G2"})
	require.True(t, ok)
	assert.Equal(t, want, elapsed)

	deadline, err := f.GetCellFormula(sheet, "N3")
	require.NoError(t, err)
	assert.Equal(t, permit.DeadlineFormula("F3", "H3"), deadline)

	cohort, err := f.GetCellValue(sheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "12期", cohort)
	cohort, err = f.GetCellValue(sheet, "D3")
	require.NoError(t, err)
	assert.Equal(t, "13期", cohort)

	prior, err := f.GetCellValue(sheet, "G3")
	require.NoError(t, err)
	assert.Equal(t, "", prior)

	// Reloading the processed workbook reproduces every derived value.
	reloaded, err := svc.Load(ctx, "roster_processed.xlsx")
	require.NoError(t, err)
	require.Len(t, reloaded.Records, len(ds.Records))
	for i := range ds.Records {
		assert.Equal(t, ds.Records[i].ElapsedDays, reloaded.Records[i].ElapsedDays, "row %d", i)
		assert.Equal(t, ds.Records[i].Deadlines, reloaded.Records[i].Deadlines, "row %d", i)
	}
}

func TestWorkbookServiceSaveProcessedKeepsExtraCellTypes(t *testing.T) {
	dir := t.TempDir()
	headers := append(append([]string{}, rosterHeaders[:11]...), "電話番号", "点数")
	rows := rosterRows()
	for i := range rows {
		rows[i] = append(rows[i][:11:11], export.Cell{Value: "09012345678"}, export.Cell{Value: 42})
	}
	rows[0][0] = export.Cell{Value: "0012"}
	writeRoster(t, dir, "roster.xlsx", headers, rows)
	svc := newTestWorkbookService(dir)
	ctx := context.Background()

	ds, err := svc.Load(ctx, "roster.xlsx")
	require.NoError(t, err)
	result, err := svc.SaveProcessed(ctx, ds, "")
	require.NoError(t, err)

	f, err := excelize.OpenFile(result.Path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)

	phone, err := f.GetCellValue(sheet, "L2")
	require.NoError(t, err)
	assert.Equal(t, "09012345678", phone)
	kind, err := f.GetCellType(sheet, "L2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeUnset, kind)
	assert.NotEqual(t, excelize.CellTypeNumber, kind)

	score, err := f.GetCellValue(sheet, "M2")
	require.NoError(t, err)
	assert.Equal(t, "42", score)
	kind, err = f.GetCellType(sheet, "M2")
	require.NoError(t, err)
	assert.Contains(t, []excelize.CellType{excelize.CellTypeUnset, excelize.CellTypeNumber}, kind)

	code, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "0012", code)
	code, err = f.GetCellValue(sheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "1002", code)
}

func TestWorkbookServiceSaveProcessedFallsBackWhenLocked(t *testing.T) {
	dir := t.TempDir()
	writeRoster(t, dir, "roster.xlsx", rosterHeaders, rosterRows())
	svc := newTestWorkbookService(dir)
	ctx := context.Background()

	ds, err := svc.Load(ctx, "roster.xlsx")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$roster_processed.xlsx"), []byte("owner"), 0o644))

	result, err := svc.SaveProcessed(ctx, ds, "")
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, "roster_processed_20240516_103000.xlsx", result.Filename)
	_, err = os.Stat(filepath.Join(dir, "roster_processed.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorkbookServiceSaveProcessedWithoutExpirationColumn(t *testing.T) {
	svc := newTestWorkbookService(t.TempDir())
	ds := &models.Dataset{Columns: []string{models.ColumnStaffCode}, SourcePath: "roster.xlsx"}

	_, err := svc.SaveProcessed(context.Background(), ds, "")
	requireAppError(t, err, appErrors.ErrMissingColumn.Code)
}

func TestWorkbookServiceRenderAlerts(t *testing.T) {
	dir := t.TempDir()
	writeRoster(t, dir, "roster.xlsx", rosterHeaders, rosterRows())
	svc := newTestWorkbookService(dir)

	ds, err := svc.Load(context.Background(), "roster.xlsx")
	require.NoError(t, err)
	today := day(2024, 5, 16)

	doc, err := svc.Render(ds, models.ExportKindAlerts, models.ExportFormatCSV, today)
	require.NoError(t, err)
	assert.Equal(t, "alert_list_20240516_103000.csv", doc.Filename)
	assert.Equal(t, models.ExportFormatCSV.ContentType(), doc.ContentType)
	// Alice expired, Bob 45 days left, Chen 46 days left under threshold 60.
	assert.Equal(t, 3, doc.Rows)
	lines := strings.Split(strings.TrimPrefix(string(doc.Body), "\ufeff"), "\r\n")
	assert.True(t, strings.HasPrefix(lines[1], "1001,Alice"))
	assert.True(t, strings.HasPrefix(lines[2], "1002,Bob"))

	_, err = svc.Render(ds, models.ExportKindAlerts, models.ExportFormatXLSX, day(2020, 1, 1))
	requireAppError(t, err, appErrors.ErrNotFound.Code)

	doc, err = svc.Render(ds, models.ExportKindProcessed, models.ExportFormatXLSX, today)
	require.NoError(t, err)
	assert.Equal(t, "processed_20240516_103000.xlsx", doc.Filename)
	assert.NotEmpty(t, doc.Body)
}
