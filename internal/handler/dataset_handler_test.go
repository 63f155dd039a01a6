package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/permit-deadline-api/internal/dto"
	"github.com/noah-isme/permit-deadline-api/internal/middleware"
	"github.com/noah-isme/permit-deadline-api/internal/models"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
)

type fakeRecordSrv struct {
	openReq     dto.OpenDatasetRequest
	openErr     error
	lastFilter  dto.RecordFilter
	lastIndex   int
	lastAdd     dto.RecordRequest
	lastPatch   dto.RecordPatch
	lastYear    int
	lastMonth   int
	views       []models.RecordView
	summary     *models.Summary
	summaryHit  bool
	mutationErr error
	deleted     []int
	closed      []string
}

func (f *fakeRecordSrv) Open(_ context.Context, req dto.OpenDatasetRequest) (*dto.DatasetResponse, error) {
	f.openReq = req
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &dto.DatasetResponse{Handle: "ds-1", Filename: "roster.xlsx", Records: len(f.views)}, nil
}

func (f *fakeRecordSrv) Describe(_ context.Context, handle string) (*dto.DatasetResponse, error) {
	if handle != "ds-1" {
		return nil, appErrors.ErrDatasetNotLoaded
	}
	return &dto.DatasetResponse{Handle: handle, Version: 3}, nil
}

func (f *fakeRecordSrv) Close(_ context.Context, handle string) error {
	f.closed = append(f.closed, handle)
	return nil
}

func (f *fakeRecordSrv) List(_ context.Context, _ string, filter dto.RecordFilter) ([]models.RecordView, *models.Pagination, error) {
	f.lastFilter = filter
	return f.views, &models.Pagination{Page: filter.Page, PageSize: len(f.views), TotalCount: len(f.views)}, nil
}

func (f *fakeRecordSrv) Get(_ context.Context, _ string, index int) (*models.RecordView, error) {
	f.lastIndex = index
	if index >= len(f.views) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}
	return &f.views[index], nil
}

func (f *fakeRecordSrv) Add(_ context.Context, _ string, req dto.RecordRequest) (*models.RecordView, error) {
	f.lastAdd = req
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &models.RecordView{Index: len(f.views), StaffCode: req.StaffCode}, nil
}

func (f *fakeRecordSrv) Update(_ context.Context, _ string, index int, patch dto.RecordPatch) (*models.RecordView, error) {
	f.lastIndex = index
	f.lastPatch = patch
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &models.RecordView{Index: index}, nil
}

func (f *fakeRecordSrv) Delete(_ context.Context, _ string, index int) error {
	f.deleted = append(f.deleted, index)
	return f.mutationErr
}

func (f *fakeRecordSrv) Summary(context.Context, string) (*models.Summary, bool, error) {
	return f.summary, f.summaryHit, nil
}

func (f *fakeRecordSrv) Calendar(_ context.Context, _ string, year, month int) (models.CalendarView, bool, error) {
	f.lastYear = year
	f.lastMonth = month
	return models.CalendarView{}, false, nil
}

func (f *fakeRecordSrv) Alerts(context.Context, string) ([]models.RecordView, error) {
	return f.views, nil
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newTestContext(method, target, body string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if body != "" {
		c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Params = params
	return c, rec
}

func TestDatasetHandlerOpenWithoutBody(t *testing.T) {
	srv := &fakeRecordSrv{}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/datasets", "")

	handler.Open(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "", srv.openReq.Path)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, string(env.Data), `"handle":"ds-1"`)
}

func TestDatasetHandlerOpenMissingColumn(t *testing.T) {
	srv := &fakeRecordSrv{openErr: appErrors.Clone(appErrors.ErrMissingColumn, "column 満了年月日 missing")}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/datasets", `{"path":"roster.xlsx"}`)

	handler.Open(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "roster.xlsx", srv.openReq.Path)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrMissingColumn.Code, env.Error.Code)
}

func TestDatasetHandlerDescribeUnknown(t *testing.T) {
	handler := NewDatasetHandler(&fakeRecordSrv{})
	c, rec := newTestContext(http.MethodGet, "/datasets/nope", "", gin.Param{Key: "handle", Value: "nope"})

	handler.Describe(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDatasetHandlerListParsesFilter(t *testing.T) {
	srv := &fakeRecordSrv{views: []models.RecordView{{Index: 0}, {Index: 1}}}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/datasets/ds-1/records?page=2&pageSize=25&category=skill1&severity=level2&q=%20alice%20", "",
		gin.Param{Key: "handle", Value: "ds-1"})

	handler.ListRecords(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.RecordFilter{Page: 2, PageSize: 25, Category: "skill1", Severity: "level2", Query: "alice"}, srv.lastFilter)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.TotalCount)
}

func TestDatasetHandlerGetRecordRejectsBadIndex(t *testing.T) {
	handler := NewDatasetHandler(&fakeRecordSrv{})
	for _, raw := range []string{"abc", "-1"} {
		c, rec := newTestContext(http.MethodGet, "/datasets/ds-1/records/"+raw, "",
			gin.Param{Key: "handle", Value: "ds-1"}, gin.Param{Key: "index", Value: raw})

		handler.GetRecord(c)

		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
}

func TestDatasetHandlerAddRecord(t *testing.T) {
	srv := &fakeRecordSrv{}
	handler := NewDatasetHandler(srv)
	body := `{"staffCode":"2001","permitStatus":"特定技能1号","expirationDate":"2025-01-31","priorElapsedDays":120,"skill1Limit":"1826","thresholds":[90,"",30]}`
	c, rec := newTestContext(http.MethodPost, "/datasets/ds-1/records", body, gin.Param{Key: "handle", Value: "ds-1"})

	handler.AddRecord(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2001", srv.lastAdd.StaffCode)
	assert.Equal(t, dto.FlexString("120"), srv.lastAdd.PriorElapsedDays)
	assert.Equal(t, dto.FlexString("1826"), srv.lastAdd.Skill1Limit)
	assert.Equal(t, []dto.FlexString{"90", "", "30"}, srv.lastAdd.Thresholds)
}

func TestDatasetHandlerAddRecordInvalidBody(t *testing.T) {
	handler := NewDatasetHandler(&fakeRecordSrv{})
	c, rec := newTestContext(http.MethodPost, "/datasets/ds-1/records", `{"priorElapsedDays":{}}`, gin.Param{Key: "handle", Value: "ds-1"})

	handler.AddRecord(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasetHandlerUpdateRecordPassesPatch(t *testing.T) {
	srv := &fakeRecordSrv{}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodPut, "/datasets/ds-1/records/4", `{"cohort":"14","thresholds":[null,"",45]}`,
		gin.Param{Key: "handle", Value: "ds-1"}, gin.Param{Key: "index", Value: "4"})

	handler.UpdateRecord(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, srv.lastIndex)
	require.NotNil(t, srv.lastPatch.Cohort)
	assert.Equal(t, "14", *srv.lastPatch.Cohort)
	require.Len(t, srv.lastPatch.Thresholds, 3)
	assert.Nil(t, srv.lastPatch.Thresholds[0])
	require.NotNil(t, srv.lastPatch.Thresholds[1])
	assert.Equal(t, dto.FlexString(""), *srv.lastPatch.Thresholds[1])
	assert.Equal(t, dto.FlexString("45"), *srv.lastPatch.Thresholds[2])
	assert.Nil(t, srv.lastPatch.Name1)
}

func TestDatasetHandlerUpdateRecordValidationError(t *testing.T) {
	srv := &fakeRecordSrv{mutationErr: appErrors.Clone(appErrors.ErrValidation, "thresholds[1]: must be a non-negative integer")}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodPut, "/datasets/ds-1/records/0", `{"thresholds":["x"]}`,
		gin.Param{Key: "handle", Value: "ds-1"}, gin.Param{Key: "index", Value: "0"})

	handler.UpdateRecord(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "thresholds[1]")
}

func TestDatasetHandlerDeleteRecord(t *testing.T) {
	srv := &fakeRecordSrv{}
	handler := NewDatasetHandler(srv)
	c, _ := newTestContext(http.MethodDelete, "/datasets/ds-1/records/2", "",
		gin.Param{Key: "handle", Value: "ds-1"}, gin.Param{Key: "index", Value: "2"})

	handler.DeleteRecord(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, []int{2}, srv.deleted)
}

func TestDatasetHandlerSummaryCacheMeta(t *testing.T) {
	srv := &fakeRecordSrv{summary: &models.Summary{Filename: "roster.xlsx", Total: 3}, summaryHit: true}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/datasets/ds-1/summary", "", gin.Param{Key: "handle", Value: "ds-1"})
	middleware.ResponseMeta()(c)

	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
	assert.Contains(t, string(env.Data), `"total":3`)
	assert.Equal(t, true, middleware.Meta(c, time.Now())[middleware.MetaCacheHit])
}

func TestDatasetHandlerCalendarDefaultsToCurrentMonth(t *testing.T) {
	srv := &fakeRecordSrv{}
	handler := NewDatasetHandler(srv)
	handler.now = func() time.Time { return time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC) }
	c, rec := newTestContext(http.MethodGet, "/datasets/ds-1/calendar", "", gin.Param{Key: "handle", Value: "ds-1"})

	handler.Calendar(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2024, srv.lastYear)
	assert.Equal(t, 5, srv.lastMonth)

	c, rec = newTestContext(http.MethodGet, "/datasets/ds-1/calendar?year=2025&month=x", "", gin.Param{Key: "handle", Value: "ds-1"})
	handler.Calendar(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasetHandlerAlertsCount(t *testing.T) {
	srv := &fakeRecordSrv{views: []models.RecordView{{Index: 2}, {Index: 0}}}
	handler := NewDatasetHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/datasets/ds-1/alerts", "", gin.Param{Key: "handle", Value: "ds-1"})

	handler.Alerts(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), env.Meta["count"])
}
