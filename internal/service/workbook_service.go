package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/permit-deadline-api/internal/models"
	"github.com/noah-isme/permit-deadline-api/internal/permit"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
	"github.com/noah-isme/permit-deadline-api/pkg/export"
	"github.com/noah-isme/permit-deadline-api/pkg/storage"
)

const (
	cohortSuffix     = "期"
	processedSuffix  = "_processed"
	alertSheetName   = "alerts"
	rosterSheetName  = "roster"
	fileStampLayout  = "20060102_150405"
	headerDataOffset = 2
)

type xlsxRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
	Write(out io.Writer, sheet export.Sheet) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// WorkbookServiceConfig locates workbooks on disk.
type WorkbookServiceConfig struct {
	Dir         string
	DefaultFile string
}

// Document is a rendered export ready to be stored or streamed.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// WorkbookService loads roster workbooks into datasets and renders datasets
// back into workbooks and documents.
type WorkbookService struct {
	xlsx    xlsxRenderer
	csv     csvRenderer
	pdf     pdfRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     WorkbookServiceConfig
	now     func() time.Time
}

// NewWorkbookService constructs a WorkbookService. Nil renderers get the
// package defaults.
func NewWorkbookService(cfg WorkbookServiceConfig, xlsx xlsxRenderer, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *WorkbookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXWriter()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	return &WorkbookService{
		xlsx:    xlsx,
		csv:     csv,
		pdf:     pdf,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Resolve maps a client supplied path onto the workbook directory. Blank
// selects the default workbook; paths escaping the directory are rejected.
func (s *WorkbookService) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = s.cfg.DefaultFile
	}
	if path == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "workbook path is required")
	}
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return "", appErrors.Clone(appErrors.ErrValidation, "only .xlsx workbooks are supported")
	}
	base := s.cfg.Dir
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve workbook directory")
	}
	full := filepath.Clean(filepath.Join(base, path))
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", appErrors.Clone(appErrors.ErrValidation, "workbook path escapes the workbook directory")
	}
	return full, nil
}

// Load reads and parses a workbook. A structurally incompatible workbook
// yields no dataset at all.
func (s *WorkbookService) Load(ctx context.Context, path string) (*models.Dataset, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("workbook %s not found", filepath.Base(full)))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat workbook")
	}
	table, err := export.ReadWorkbookFile(full)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook")
	}
	ds, err := s.Parse(table, full)
	if err != nil {
		return nil, translateEngineError(err)
	}
	s.logger.Info("workbook loaded",
		zap.String("path", full),
		zap.Int("records", len(ds.Records)),
		zap.String("expiration_column", ds.ExpirationColumn),
	)
	return ds, nil
}

// Parse converts a raw table into a dataset and runs the batch recompute.
// Derived columns read from the table are ignored and recomputed.
func (s *WorkbookService) Parse(table *export.Table, source string) (*models.Dataset, error) {
	if table == nil {
		return nil, fmt.Errorf("table is nil")
	}
	ds := &models.Dataset{
		Columns:    append([]string(nil), table.Headers...),
		SourcePath: source,
		LoadedAt:   s.now().UTC(),
	}
	for _, alias := range models.ExpirationColumnAliases {
		if ds.HasColumn(alias) {
			ds.ExpirationColumn = alias
			break
		}
	}
	if ds.ExpirationColumn == "" {
		return nil, &permit.MissingColumnError{Column: models.ColumnExpirationDate}
	}
	if !ds.HasColumn(models.ColumnSkill1Limit) {
		return nil, &permit.MissingColumnError{Column: models.ColumnSkill1Limit}
	}
	ds.EnsureColumn(models.ColumnElapsedDays)
	for i := 1; i <= models.ThresholdCount; i++ {
		if ds.HasColumn(models.ThresholdColumn(i)) {
			ds.EnsureColumn(models.DeadlineColumn(i))
		}
	}

	index := make(map[string]int, len(table.Headers))
	for i, h := range table.Headers {
		index[h] = i
	}
	known := knownColumns(ds.ExpirationColumn)

	for i, raw := range table.Rows {
		if blankRow(raw) {
			continue
		}
		row := i + headerDataOffset
		get := func(column string) string {
			if pos, ok := index[column]; ok && pos < len(raw) {
				return raw[pos]
			}
			return ""
		}

		status := permit.Normalize(get(models.ColumnPermitStatus))
		limit, err := permit.ParseSkill1Limit(row, status, get(models.ColumnSkill1Limit))
		if err != nil {
			return nil, err
		}

		rec := models.Record{
			StaffCode:      get(models.ColumnStaffCode),
			Name1:          get(models.ColumnName1),
			Name2:          get(models.ColumnName2),
			PermitStatus:   status,
			Nationality:    get(models.ColumnNationality),
			CardNumber:     permit.Normalize(get(models.ColumnCardNumber)),
			Cohort:         permit.Normalize(get(models.ColumnCohort)),
			BirthDate:      s.dateCell(row, models.ColumnBirthDate, get(models.ColumnBirthDate)),
			PermissionDate: s.dateCell(row, models.ColumnPermissionDate, get(models.ColumnPermissionDate)),
			ExpirationDate: s.dateCell(row, ds.ExpirationColumn, get(ds.ExpirationColumn)),
			Skill1Limit:    limit,
		}
		prior, err := permit.ParseCount(permit.FieldPriorElapsedDays, get(models.ColumnPriorElapsedDays))
		if err != nil {
			s.logger.Debug("prior elapsed days ignored", zap.Int("row", row), zap.Error(err))
		}
		rec.PriorElapsedDays = prior
		for t := 0; t < models.ThresholdCount; t++ {
			column := models.ThresholdColumn(t + 1)
			if _, ok := index[column]; !ok {
				continue
			}
			value := get(column)
			rec.Thresholds[t] = permit.ParseThreshold(value)
			if rec.Thresholds[t] == nil && strings.TrimSpace(value) != "" {
				s.logger.Debug("threshold ignored", zap.Int("row", row), zap.String("column", column), zap.String("value", value))
			}
		}
		for column, pos := range index {
			if _, ok := known[column]; ok || pos >= len(raw) || raw[pos] == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[column] = raw[pos]
			markNumeric(&rec, column, table.IsNumeric(i, pos))
		}
		if pos, ok := index[models.ColumnStaffCode]; ok {
			markNumeric(&rec, models.ColumnStaffCode, table.IsNumeric(i, pos))
		}
		ds.Records = append(ds.Records, rec)
	}

	s.recompute(ds)
	return ds, nil
}

// recompute refreshes derived fields and records how long it took.
func (s *WorkbookService) recompute(ds *models.Dataset) {
	start := time.Now()
	permit.Recompute(ds)
	s.metrics.ObserveRecompute(len(ds.Records), time.Since(start))
}

func (s *WorkbookService) dateCell(row int, column, raw string) *time.Time {
	d, ok := export.ParseDateCell(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		s.logger.Debug("date ignored", zap.Int("row", row), zap.String("column", column), zap.String("value", raw))
	}
	return d
}

// ProcessedSheet renders the roster with every derived cell as a formula
// over the input cells of its row.
func (s *WorkbookService) ProcessedSheet(ds *models.Dataset) (export.Sheet, error) {
	return s.sheet(ds, rosterSheetName, ds.Records, true)
}

// AlertSheet renders the alert list as plain values.
func (s *WorkbookService) AlertSheet(ds *models.Dataset, today time.Time) (export.Sheet, error) {
	alerts := permit.Alerts(ds, today)
	if len(alerts) == 0 {
		return export.Sheet{}, appErrors.Clone(appErrors.ErrNotFound, "no alert targets")
	}
	records := make([]models.Record, len(alerts))
	for i, a := range alerts {
		records[i] = a.Record
	}
	return s.sheet(ds, alertSheetName, records, false)
}

// SaveProcessed writes the processed workbook to target, or next to the
// source workbook when target is blank. A locked or unwritable target is
// retried once at a timestamped sibling path.
func (s *WorkbookService) SaveProcessed(ctx context.Context, ds *models.Dataset, target string) (*models.ExportResult, error) {
	sheet, err := s.ProcessedSheet(ds)
	if err != nil {
		return nil, translateEngineError(err)
	}
	if target == "" {
		target = ProcessedPath(ds.SourcePath)
	}
	return s.save(ctx, string(models.ExportKindProcessed), target, sheet)
}

// Persist writes the dataset back over its source workbook.
func (s *WorkbookService) Persist(ctx context.Context, ds *models.Dataset) (*models.ExportResult, error) {
	sheet, err := s.ProcessedSheet(ds)
	if err != nil {
		return nil, translateEngineError(err)
	}
	return s.save(ctx, "autosave", ds.SourcePath, sheet)
}

func (s *WorkbookService) save(ctx context.Context, kind, target string, sheet export.Sheet) (*models.ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset has no source workbook")
	}
	result, err := storage.SaveWithFallback(target, s.now(), func(w io.Writer) error {
		return s.xlsx.Write(w, sheet)
	})
	if err != nil {
		s.metrics.RecordExport(kind, ExportResultFailed)
		s.logger.Error("workbook save failed", zap.String("target", target), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
	}
	if result.Fallback {
		s.metrics.RecordExport(kind, ExportResultFallback)
		s.logger.Warn("workbook saved to fallback path",
			zap.String("target", target),
			zap.String("path", result.Path),
			zap.NamedError("cause", result.Cause),
		)
	} else {
		s.metrics.RecordExport(kind, ExportResultOK)
	}
	return &models.ExportResult{
		Path:     result.Path,
		Filename: filepath.Base(result.Path),
		Fallback: result.Fallback,
	}, nil
}

// Render builds a downloadable document of the given kind and format.
// Formulas are only kept in xlsx output.
func (s *WorkbookService) Render(ds *models.Dataset, kind models.ExportKind, format models.ExportFormat, today time.Time) (*Document, error) {
	var (
		sheet export.Sheet
		err   error
		title string
	)
	switch kind {
	case models.ExportKindProcessed:
		if format == models.ExportFormatXLSX {
			sheet, err = s.ProcessedSheet(ds)
		} else {
			sheet, err = s.sheet(ds, rosterSheetName, ds.Records, false)
		}
		title = "Roster"
	case models.ExportKindAlerts:
		sheet, err = s.AlertSheet(ds, today)
		title = fmt.Sprintf("Alert list %s", today.Format(permit.DateLayout))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export kind")
	}
	if err != nil {
		return nil, translateEngineError(err)
	}

	var body []byte
	switch format {
	case models.ExportFormatXLSX:
		body, err = s.xlsx.Render(sheet)
	case models.ExportFormatCSV:
		body, err = s.csv.Render(sheet.Dataset())
	case models.ExportFormatPDF:
		body, err = s.pdf.Render(sheet.Dataset(), title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		s.metrics.RecordExport(string(kind), ExportResultFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.metrics.RecordExport(string(kind), ExportResultOK)
	return &Document{
		Filename:    documentName(kind, format, s.now()),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(sheet.Rows),
	}, nil
}

func (s *WorkbookService) sheet(ds *models.Dataset, name string, records []models.Record, formulas bool) (export.Sheet, error) {
	if ds == nil {
		return export.Sheet{}, appErrors.ErrDatasetNotLoaded
	}
	if ds.ExpirationColumn == "" || !ds.HasColumn(ds.ExpirationColumn) {
		return export.Sheet{}, &permit.MissingColumnError{Column: models.ColumnExpirationDate}
	}
	sheet := export.Sheet{
		Name:    name,
		Headers: append([]string(nil), ds.Columns...),
		Rows:    make([][]export.Cell, 0, len(records)),
	}
	position := make(map[string]int, len(ds.Columns))
	for i, col := range ds.Columns {
		position[col] = i + 1
	}
	for i, rec := range records {
		sheet.Rows = append(sheet.Rows, rowCells(ds, position, rec, i+headerDataOffset, formulas))
	}
	return sheet, nil
}

func rowCells(ds *models.Dataset, position map[string]int, rec models.Record, row int, formulas bool) []export.Cell {
	ref := func(column string) string {
		if col, ok := position[column]; ok {
			return export.CellRef(col, row)
		}
		return ""
	}
	cells := make([]export.Cell, len(ds.Columns))
	for i, column := range ds.Columns {
		cell := export.Cell{Date: isDateColumn(column)}
		switch column {
		case models.ColumnStaffCode:
			cell.Value = staffCodeValue(rec.StaffCode, rec.NumericCells[models.ColumnStaffCode])
		case models.ColumnName1:
			cell.Value = textValue(rec.Name1)
		case models.ColumnName2:
			cell.Value = textValue(rec.Name2)
		case models.ColumnPermitStatus:
			cell.Value = textValue(rec.PermitStatus)
		case models.ColumnNationality:
			cell.Value = textValue(rec.Nationality)
		case models.ColumnCardNumber:
			cell.Value = textValue(rec.CardNumber)
		case models.ColumnCohort:
			cell.Value = cohortValue(rec.Cohort)
		case models.ColumnBirthDate:
			cell.Value = rec.BirthDate
		case models.ColumnPermissionDate:
			cell.Value = rec.PermissionDate
		case ds.ExpirationColumn:
			cell.Value = rec.ExpirationDate
			cell.Date = true
		case models.ColumnPriorElapsedDays:
			cell.Value = intValue(permit.PersistedPriorElapsedDays(rec.PermitStatus, rec.PriorElapsedDays))
		case models.ColumnElapsedDays:
			cell.Value = intValue(rec.ElapsedDays)
			if formulas {
				if f, ok := permit.ElapsedDaysFormula(permit.RowRefs{
					Status:     ref(models.ColumnPermitStatus),
					Permission: ref(models.ColumnPermissionDate),
					Expiration: ref(ds.ExpirationColumn),
					Prior:      ref(models.ColumnPriorElapsedDays),
				}); ok {
					cell.Formula = f
				}
			}
		case models.ColumnSkill1Limit:
			if rec.Skill1Limit != nil {
				cell.Value = *rec.Skill1Limit
			}
		default:
			if t, ok := thresholdSlot(column, models.ThresholdColumn); ok {
				cell.Value = intValue(rec.Thresholds[t])
				break
			}
			if t, ok := thresholdSlot(column, models.DeadlineColumn); ok {
				cell.Date = true
				cell.Value = rec.Deadlines[t]
				if thRef := ref(models.ThresholdColumn(t + 1)); formulas && thRef != "" {
					cell.Formula = permit.DeadlineFormula(ref(ds.ExpirationColumn), thRef)
				}
				break
			}
			cell.Value = extraValue(rec.Extra[column], rec.NumericCells[column])
		}
		cells[i] = cell
	}
	return cells
}

// ProcessedPath returns name_processed.xlsx next to source.
func ProcessedPath(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + processedSuffix + ext
}

func documentName(kind models.ExportKind, format models.ExportFormat, now time.Time) string {
	prefix := "processed"
	if kind == models.ExportKindAlerts {
		prefix = "alert_list"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format(fileStampLayout), format)
}

func knownColumns(expiration string) map[string]struct{} {
	known := map[string]struct{}{
		models.ColumnStaffCode:        {},
		models.ColumnName1:            {},
		models.ColumnName2:            {},
		models.ColumnPermitStatus:     {},
		models.ColumnNationality:      {},
		models.ColumnCardNumber:       {},
		models.ColumnBirthDate:        {},
		models.ColumnCohort:           {},
		models.ColumnPermissionDate:   {},
		models.ColumnPriorElapsedDays: {},
		models.ColumnElapsedDays:      {},
		models.ColumnSkill1Limit:      {},
		expiration:                    {},
	}
	for i := 1; i <= models.ThresholdCount; i++ {
		known[models.ThresholdColumn(i)] = struct{}{}
		known[models.DeadlineColumn(i)] = struct{}{}
	}
	return known
}

func thresholdSlot(column string, name func(int) string) (int, bool) {
	for i := 0; i < models.ThresholdCount; i++ {
		if column == name(i+1) {
			return i, true
		}
	}
	return 0, false
}

func isDateColumn(column string) bool {
	return strings.Contains(column, "年月日") || strings.Contains(column, "期日")
}

func blankRow(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func textValue(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func intValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// staffCodeValue writes numeric codes as numbers. Text codes with leading
// zeros stay text unless the source cell was numeric.
func staffCodeValue(code string, numeric bool) interface{} {
	code = strings.TrimSpace(code)
	if n, err := strconv.ParseInt(code, 10, 64); err == nil && (numeric || strconv.FormatInt(n, 10) == code) {
		return n
	}
	return textValue(code)
}

func markNumeric(rec *models.Record, column string, numeric bool) {
	if !numeric {
		return
	}
	if rec.NumericCells == nil {
		rec.NumericCells = make(map[string]bool)
	}
	rec.NumericCells[column] = true
}

func cohortValue(cohort string) interface{} {
	cohort = strings.TrimSpace(cohort)
	if cohort == "" {
		return nil
	}
	if !strings.HasSuffix(cohort, cohortSuffix) {
		cohort += cohortSuffix
	}
	return cohort
}

// extraValue re-emits an unknown column's cell with its source type: text
// stays text even when it looks numeric.
func extraValue(raw string, numeric bool) interface{} {
	if raw == "" {
		return nil
	}
	if numeric {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

// translateEngineError maps engine errors onto API errors.
func translateEngineError(err error) error {
	var (
		missing *permit.MissingColumnError
		rowErr  *permit.RowError
		valErr  *permit.ValidationError
		dateErr *permit.DateParseError
		appErr  *appErrors.Error
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &missing):
		return appErrors.Wrap(err, appErrors.ErrMissingColumn.Code, appErrors.ErrMissingColumn.Status, missing.Error()).
			WithDetails("column", missing.Column)
	case errors.As(err, &rowErr):
		return appErrors.Wrap(err, appErrors.ErrRowInvalid.Code, appErrors.ErrRowInvalid.Status, rowErr.Error()).
			WithDetails("row", rowErr.Row, "column", rowErr.Column)
	case errors.As(err, &valErr):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, valErr.Error()).
			WithDetails("field", valErr.Field)
	case errors.As(err, &dateErr):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, dateErr.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
}
