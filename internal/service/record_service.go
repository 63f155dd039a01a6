package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/permit-deadline-api/internal/dto"
	"github.com/noah-isme/permit-deadline-api/internal/models"
	"github.com/noah-isme/permit-deadline-api/internal/permit"
	"github.com/noah-isme/permit-deadline-api/internal/repository"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
)

const fieldSkill1Limit = "skill1Limit"

type datasetSessions interface {
	Create(ds *models.Dataset) *repository.DatasetSession
	Get(handle string) (*repository.DatasetSession, error)
	Delete(handle string)
	Count() int
}

type workbookLoader interface {
	Load(ctx context.Context, path string) (*models.Dataset, error)
}

type autosaveScheduler interface {
	Schedule(handle string)
}

// RecordServiceConfig tunes record queries.
type RecordServiceConfig struct {
	Policy      permit.Policy
	MaxPageSize int
}

// RecordServiceParams groups constructor dependencies.
type RecordServiceParams struct {
	Sessions  datasetSessions
	Loader    workbookLoader
	Cache     *CacheService
	Autosave  autosaveScheduler
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    RecordServiceConfig
}

// RecordService owns loaded datasets and every query and mutation on them.
// Mutations validate a candidate record first and commit it together with the
// recompute under the session lock.
type RecordService struct {
	sessions  datasetSessions
	loader    workbookLoader
	cache     *CacheService
	autosave  autosaveScheduler
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RecordServiceConfig
	now       func() time.Time
}

// NewRecordService constructs a RecordService with sane defaults.
func NewRecordService(params RecordServiceParams) *RecordService {
	cfg := params.Config
	if cfg.Policy.CapDays <= 0 {
		cfg.Policy = permit.DefaultPolicy()
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 500
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		sessions:  params.Sessions,
		loader:    params.Loader,
		cache:     params.Cache,
		autosave:  params.Autosave,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Open loads a workbook into a new dataset session.
func (s *RecordService) Open(ctx context.Context, req dto.OpenDatasetRequest) (*dto.DatasetResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	ds, err := s.loader.Load(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	session := s.sessions.Create(ds)
	s.metrics.SetDatasetsLoaded(s.sessions.Count())
	s.logger.Info("dataset opened", zap.String("handle", session.Handle), zap.Int("records", len(ds.Records)))
	return describe(session.Handle, ds, 0), nil
}

// Close drops a dataset session and its cached views.
func (s *RecordService) Close(ctx context.Context, handle string) error {
	if _, err := s.session(handle); err != nil {
		return err
	}
	s.sessions.Delete(handle)
	s.invalidate(ctx, handle)
	s.metrics.SetDatasetsLoaded(s.sessions.Count())
	return nil
}

// Describe returns the metadata of a dataset session.
func (s *RecordService) Describe(ctx context.Context, handle string) (*dto.DatasetResponse, error) {
	session, err := s.session(handle)
	if err != nil {
		return nil, err
	}
	var resp *dto.DatasetResponse
	_ = session.Read(func(ds *models.Dataset) error {
		resp = describe(handle, ds, session.Version())
		return nil
	})
	return resp, nil
}

// Snapshot returns a deep copy of the dataset and the version it reflects.
func (s *RecordService) Snapshot(ctx context.Context, handle string) (*models.Dataset, uint64, error) {
	session, err := s.session(handle)
	if err != nil {
		return nil, 0, err
	}
	ds, version := session.Snapshot()
	return ds, version, nil
}

// List returns record views matching the filter. A zero page size returns
// every match on a single page.
func (s *RecordService) List(ctx context.Context, handle string, filter dto.RecordFilter) ([]models.RecordView, *models.Pagination, error) {
	session, err := s.session(handle)
	if err != nil {
		return nil, nil, err
	}
	if filter.Category != "" && !permit.Category(filter.Category).Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}
	today := s.today()
	query := strings.ToLower(strings.TrimSpace(permit.Normalize(filter.Query)))

	var views []models.RecordView
	_ = session.Read(func(ds *models.Dataset) error {
		views = make([]models.RecordView, 0, len(ds.Records))
		for i, rec := range ds.Records {
			view := permit.BuildView(i, rec, today, s.cfg.Policy.Thresholds)
			if matchesFilter(view, filter, query) {
				views = append(views, view)
			}
		}
		return nil
	})

	total := len(views)
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = total
		page = 1
	} else if s.cfg.MaxPageSize > 0 && size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return views[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns the view of one record.
func (s *RecordService) Get(ctx context.Context, handle string, index int) (*models.RecordView, error) {
	session, err := s.session(handle)
	if err != nil {
		return nil, err
	}
	var view models.RecordView
	err = session.Read(func(ds *models.Dataset) error {
		if index < 0 || index >= len(ds.Records) {
			return recordNotFound(index)
		}
		view = permit.BuildView(index, ds.Records[index], s.today(), s.cfg.Policy.Thresholds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Add validates and appends a record.
func (s *RecordService) Add(ctx context.Context, handle string, req dto.RecordRequest) (*models.RecordView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	session, err := s.session(handle)
	if err != nil {
		return nil, err
	}
	candidate, err := s.recordFromRequest(req)
	if err != nil {
		return nil, translateEngineError(err)
	}

	var view models.RecordView
	_, err = session.Mutate(func(ds *models.Dataset) error {
		ds.Mask(&candidate)
		permit.RecomputeRecord(&candidate)
		ds.Records = append(ds.Records, candidate)
		index := len(ds.Records) - 1
		view = permit.BuildView(index, ds.Records[index], s.today(), s.cfg.Policy.Thresholds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, handle, "add", view.Index)
	return &view, nil
}

// Update applies a partial change to a record. Blank or unparseable dates
// leave the stored date untouched.
func (s *RecordService) Update(ctx context.Context, handle string, index int, patch dto.RecordPatch) (*models.RecordView, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	session, err := s.session(handle)
	if err != nil {
		return nil, err
	}

	var view models.RecordView
	_, err = session.Mutate(func(ds *models.Dataset) error {
		if index < 0 || index >= len(ds.Records) {
			return recordNotFound(index)
		}
		candidate := ds.Records[index].Clone()
		if err := s.applyPatch(&candidate, patch); err != nil {
			return translateEngineError(err)
		}
		ds.Mask(&candidate)
		permit.RecomputeRecord(&candidate)
		ds.Records[index] = candidate
		view = permit.BuildView(index, candidate, s.today(), s.cfg.Policy.Thresholds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, handle, "update", index)
	return &view, nil
}

// Delete removes a record. Later records shift down by one position.
func (s *RecordService) Delete(ctx context.Context, handle string, index int) error {
	session, err := s.session(handle)
	if err != nil {
		return err
	}
	_, err = session.Mutate(func(ds *models.Dataset) error {
		if index < 0 || index >= len(ds.Records) {
			return recordNotFound(index)
		}
		ds.Records = append(ds.Records[:index], ds.Records[index+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.committed(ctx, handle, "delete", index)
	return nil
}

// Summary aggregates the dashboard counters and reports whether the cache served them.
func (s *RecordService) Summary(ctx context.Context, handle string) (*models.Summary, bool, error) {
	session, err := s.session(handle)
	if err != nil {
		return nil, false, err
	}
	today := s.today()
	key := DatasetKey(handle, session.Version(), "summary", today.Format(permit.ISODateLayout))
	summary, hit := cachedView(ctx, s.cache, key, func() (summary models.Summary) {
		_ = session.Read(func(ds *models.Dataset) error {
			summary = permit.Summarize(ds, today, s.cfg.Policy)
			return nil
		})
		return summary
	})
	return &summary, hit, nil
}

// Calendar indexes the deadlines of a month by date.
func (s *RecordService) Calendar(ctx context.Context, handle string, year, month int) (models.CalendarView, bool, error) {
	if year < 1900 || year > 9999 || month < 1 || month > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "year and month are out of range")
	}
	session, err := s.session(handle)
	if err != nil {
		return nil, false, err
	}
	key := DatasetKey(handle, session.Version(), "calendar", fmt.Sprintf("%04d-%02d", year, month))
	view, hit := cachedView(ctx, s.cache, key, func() (view models.CalendarView) {
		_ = session.Read(func(ds *models.Dataset) error {
			view = permit.Calendar(ds, year, time.Month(month))
			return nil
		})
		return view
	})
	return view, hit, nil
}

// Alerts lists records at or below one of their thresholds, soonest first.
func (s *RecordService) Alerts(ctx context.Context, handle string) ([]models.RecordView, error) {
	session, err := s.session(handle)
	if err != nil {
		return nil, err
	}
	today := s.today()
	var views []models.RecordView
	_ = session.Read(func(ds *models.Dataset) error {
		alerts := permit.Alerts(ds, today)
		views = make([]models.RecordView, 0, len(alerts))
		for _, a := range alerts {
			views = append(views, permit.BuildView(a.Index, a.Record, today, s.cfg.Policy.Thresholds))
		}
		return nil
	})
	return views, nil
}

func (s *RecordService) session(handle string) (*repository.DatasetSession, error) {
	if s.sessions == nil {
		return nil, appErrors.ErrDatasetNotLoaded
	}
	session, err := s.sessions.Get(handle)
	if err != nil {
		if errors.Is(err, repository.ErrDatasetNotFound) {
			return nil, appErrors.ErrDatasetNotLoaded
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	return session, nil
}

func (s *RecordService) committed(ctx context.Context, handle, op string, index int) {
	s.invalidate(ctx, handle)
	if s.autosave != nil {
		s.autosave.Schedule(handle)
	}
	s.logger.Info("record committed", zap.String("handle", handle), zap.String("op", op), zap.Int("index", index))
}

func (s *RecordService) invalidate(ctx context.Context, handle string) {
	_ = s.cache.Forget(ctx, handle)
}

func (s *RecordService) today() time.Time {
	return permit.DateOf(s.now())
}

func (s *RecordService) recordFromRequest(req dto.RecordRequest) (models.Record, error) {
	status := strings.TrimSpace(permit.Normalize(req.PermitStatus))
	category := permit.Classify(status)

	prior, err := permit.ParsePriorElapsedDays(category, req.PriorElapsedDays.String())
	if err != nil {
		return models.Record{}, err
	}
	limit, err := parseSkill1Limit(category, status, req.Skill1Limit.String())
	if err != nil {
		return models.Record{}, err
	}
	rec := models.Record{
		StaffCode:        strings.TrimSpace(req.StaffCode),
		Name1:            strings.TrimSpace(req.Name1),
		Name2:            strings.TrimSpace(req.Name2),
		PermitStatus:     status,
		Nationality:      strings.TrimSpace(req.Nationality),
		CardNumber:       strings.TrimSpace(permit.Normalize(req.CardNumber)),
		Cohort:           strings.TrimSpace(permit.Normalize(req.Cohort)),
		PriorElapsedDays: prior,
		Skill1Limit:      limit,
	}
	for _, field := range []struct {
		name string
		raw  string
		dest **time.Time
	}{
		{permit.FieldBirthDate, req.BirthDate, &rec.BirthDate},
		{permit.FieldPermissionDate, req.PermissionDate, &rec.PermissionDate},
		{permit.FieldExpirationDate, req.ExpirationDate, &rec.ExpirationDate},
	} {
		d, err := permit.ParseDate(field.name, field.raw)
		if err != nil {
			return models.Record{}, err
		}
		*field.dest = d
	}
	for i := 0; i < models.ThresholdCount; i++ {
		raw := ""
		if i < len(req.Thresholds) {
			raw = req.Thresholds[i].String()
		}
		if strings.TrimSpace(raw) == "" {
			v := s.cfg.Policy.Thresholds[i]
			rec.Thresholds[i] = &v
			continue
		}
		v, err := parseThresholdInput(i, raw)
		if err != nil {
			return models.Record{}, err
		}
		rec.Thresholds[i] = v
	}
	return rec, nil
}

func (s *RecordService) applyPatch(rec *models.Record, patch dto.RecordPatch) error {
	setText := func(dest *string, v *string, normalize bool) {
		if v == nil {
			return
		}
		text := *v
		if normalize {
			text = permit.Normalize(text)
		}
		*dest = strings.TrimSpace(text)
	}
	if patch.StaffCode != nil && strings.TrimSpace(*patch.StaffCode) != rec.StaffCode {
		delete(rec.NumericCells, models.ColumnStaffCode)
	}
	setText(&rec.StaffCode, patch.StaffCode, false)
	setText(&rec.Name1, patch.Name1, false)
	setText(&rec.Name2, patch.Name2, false)
	setText(&rec.Nationality, patch.Nationality, false)
	setText(&rec.CardNumber, patch.CardNumber, true)
	setText(&rec.Cohort, patch.Cohort, true)

	statusChanged := false
	if patch.PermitStatus != nil {
		status := strings.TrimSpace(permit.Normalize(*patch.PermitStatus))
		statusChanged = status != rec.PermitStatus
		rec.PermitStatus = status
	}
	category := permit.Classify(rec.PermitStatus)

	for _, field := range []struct {
		name string
		raw  *string
		dest **time.Time
	}{
		{permit.FieldBirthDate, patch.BirthDate, &rec.BirthDate},
		{permit.FieldPermissionDate, patch.PermissionDate, &rec.PermissionDate},
		{permit.FieldExpirationDate, patch.ExpirationDate, &rec.ExpirationDate},
	} {
		if field.raw == nil {
			continue
		}
		d, err := permit.ParseDate(field.name, *field.raw)
		if err != nil || d == nil {
			s.logger.Debug("date update ignored", zap.String("field", field.name), zap.String("value", *field.raw))
			continue
		}
		*field.dest = d
	}

	switch {
	case patch.PriorElapsedDays != nil:
		prior, err := permit.ParsePriorElapsedDays(category, patch.PriorElapsedDays.String())
		if err != nil {
			return err
		}
		rec.PriorElapsedDays = prior
	case statusChanged:
		if err := permit.ValidatePriorElapsedDays(category, rec.PriorElapsedDays); err != nil {
			return err
		}
	}

	if patch.Skill1Limit != nil {
		limit, err := parseSkill1Limit(category, rec.PermitStatus, patch.Skill1Limit.String())
		if err != nil {
			return err
		}
		rec.Skill1Limit = limit
	} else if category == permit.CategorySkill1 && rec.Skill1Limit == nil {
		return &permit.ValidationError{Category: category, Field: fieldSkill1Limit, Message: "required, must be numeric"}
	}

	for i, raw := range patch.Thresholds {
		if i >= models.ThresholdCount {
			break
		}
		if raw == nil {
			continue
		}
		if strings.TrimSpace(raw.String()) == "" {
			rec.Thresholds[i] = nil
			continue
		}
		v, err := parseThresholdInput(i, raw.String())
		if err != nil {
			return err
		}
		rec.Thresholds[i] = v
	}
	return nil
}

func parseSkill1Limit(category permit.Category, status, raw string) (*float64, error) {
	limit, err := permit.ParseSkill1Limit(0, status, raw)
	if err != nil {
		return nil, &permit.ValidationError{Category: category, Field: fieldSkill1Limit, Message: "required, must be numeric"}
	}
	return limit, nil
}

func parseThresholdInput(i int, raw string) (*int, error) {
	v := permit.ParseThreshold(raw)
	if v == nil {
		return nil, &permit.ValidationError{
			Field:   fmt.Sprintf("%s%d", permit.FieldThreshold, i+1),
			Message: "must be a number >= 0",
		}
	}
	return v, nil
}

func recordNotFound(index int) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("record %d not found", index))
}

func describe(handle string, ds *models.Dataset, version uint64) *dto.DatasetResponse {
	return &dto.DatasetResponse{
		Handle:   handle,
		Filename: filepath.Base(ds.SourcePath),
		Columns:  append([]string(nil), ds.Columns...),
		Records:  len(ds.Records),
		Version:  version,
		LoadedAt: ds.LoadedAt,
	}
}

func matchesFilter(view models.RecordView, filter dto.RecordFilter, query string) bool {
	if filter.Category != "" && view.Category != filter.Category {
		return false
	}
	if filter.Severity != "" {
		switch filter.Severity {
		case models.ExpirationExpired, models.ExpirationUrgent, models.ExpirationWarning,
			models.ExpirationCaution, models.ExpirationSafe, models.ExpirationUnknown:
			if view.ExpirationStatus != filter.Severity {
				return false
			}
		default:
			if view.Severity != filter.Severity {
				return false
			}
		}
	}
	if query == "" {
		return true
	}
	for _, field := range []string{view.StaffCode, view.Name1, view.Name2, view.PermitStatus, view.CardNumber} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
