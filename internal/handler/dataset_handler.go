package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/permit-deadline-api/internal/dto"
	"github.com/noah-isme/permit-deadline-api/internal/middleware"
	"github.com/noah-isme/permit-deadline-api/internal/models"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
	"github.com/noah-isme/permit-deadline-api/pkg/response"
)

type recordService interface {
	Open(ctx context.Context, req dto.OpenDatasetRequest) (*dto.DatasetResponse, error)
	Describe(ctx context.Context, handle string) (*dto.DatasetResponse, error)
	Close(ctx context.Context, handle string) error
	List(ctx context.Context, handle string, filter dto.RecordFilter) ([]models.RecordView, *models.Pagination, error)
	Get(ctx context.Context, handle string, index int) (*models.RecordView, error)
	Add(ctx context.Context, handle string, req dto.RecordRequest) (*models.RecordView, error)
	Update(ctx context.Context, handle string, index int, patch dto.RecordPatch) (*models.RecordView, error)
	Delete(ctx context.Context, handle string, index int) error
	Summary(ctx context.Context, handle string) (*models.Summary, bool, error)
	Calendar(ctx context.Context, handle string, year, month int) (models.CalendarView, bool, error)
	Alerts(ctx context.Context, handle string) ([]models.RecordView, error)
}

// DatasetHandler exposes dataset sessions and their records.
type DatasetHandler struct {
	service recordService
	now     func() time.Time
}

// NewDatasetHandler constructs the handler.
func NewDatasetHandler(service recordService) *DatasetHandler {
	return &DatasetHandler{service: service, now: time.Now}
}

// Open godoc
// @Summary Load a roster workbook into a new dataset session
// @Tags Datasets
// @Accept json
// @Produce json
// @Param payload body dto.OpenDatasetRequest true "Workbook path relative to the workbook directory"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /datasets [post]
func (h *DatasetHandler) Open(c *gin.Context) {
	var req dto.OpenDatasetRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
			return
		}
	}
	ds, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ds)
}

// Describe godoc
// @Summary Describe a dataset session
// @Tags Datasets
// @Produce json
// @Param handle path string true "Dataset handle"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle} [get]
func (h *DatasetHandler) Describe(c *gin.Context) {
	ds, err := h.service.Describe(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ds, nil)
}

// Close godoc
// @Summary Release a dataset session
// @Tags Datasets
// @Param handle path string true "Dataset handle"
// @Success 204
// @Router /datasets/{handle} [delete]
func (h *DatasetHandler) Close(c *gin.Context) {
	if err := h.service.Close(c.Request.Context(), c.Param("handle")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListRecords godoc
// @Summary List records with derived values
// @Tags Records
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param page query int false "Page (1-based)"
// @Param pageSize query int false "Page size, 0 returns every record"
// @Param category query string false "trainee|skill1|skill2|other"
// @Param severity query string false "level1|level2|level3 or an expiration bucket"
// @Param q query string false "Matches staff code, names or card number"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle}/records [get]
func (h *DatasetHandler) ListRecords(c *gin.Context) {
	filter := dto.RecordFilter{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "pageSize", 0),
		Category: strings.TrimSpace(c.Query("category")),
		Severity: strings.TrimSpace(c.Query("severity")),
		Query:    strings.TrimSpace(c.Query("q")),
	}
	records, pagination, err := h.service.List(c.Request.Context(), c.Param("handle"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// GetRecord godoc
// @Summary Get one record
// @Tags Records
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param index path int true "Record index"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle}/records/{index} [get]
func (h *DatasetHandler) GetRecord(c *gin.Context) {
	index, err := parseIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Get(c.Request.Context(), c.Param("handle"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// AddRecord godoc
// @Summary Append a record
// @Tags Records
// @Accept json
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param payload body dto.RecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /datasets/{handle}/records [post]
func (h *DatasetHandler) AddRecord(c *gin.Context) {
	var req dto.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.service.Add(c.Request.Context(), c.Param("handle"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// UpdateRecord godoc
// @Summary Update a record in place
// @Tags Records
// @Accept json
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param index path int true "Record index"
// @Param payload body dto.RecordPatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle}/records/{index} [put]
func (h *DatasetHandler) UpdateRecord(c *gin.Context) {
	index, err := parseIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var patch dto.RecordPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.service.Update(c.Request.Context(), c.Param("handle"), index, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// DeleteRecord godoc
// @Summary Delete a record; later indices shift down by one
// @Tags Records
// @Param handle path string true "Dataset handle"
// @Param index path int true "Record index"
// @Success 204
// @Router /datasets/{handle}/records/{index} [delete]
func (h *DatasetHandler) DeleteRecord(c *gin.Context) {
	index, err := parseIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("handle"), index); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Dashboard counters for a dataset
// @Tags Dashboard
// @Produce json
// @Param handle path string true "Dataset handle"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle}/summary [get]
func (h *DatasetHandler) Summary(c *gin.Context) {
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, summary, cacheHit, start)
}

// Calendar godoc
// @Summary Deadline calendar for one month
// @Tags Dashboard
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param year query int false "Year, defaults to the current year"
// @Param month query int false "Month 1-12, defaults to the current month"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle}/calendar [get]
func (h *DatasetHandler) Calendar(c *gin.Context) {
	now := h.now()
	year, err := parseRequiredInt(c.Query("year"), now.Year())
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year parameter"))
		return
	}
	month, err := parseRequiredInt(c.Query("month"), int(now.Month()))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid month parameter"))
		return
	}
	start := time.Now()
	view, cacheHit, err := h.service.Calendar(c.Request.Context(), c.Param("handle"), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, view, cacheHit, start)
}

// Alerts godoc
// @Summary Records inside any of their alert thresholds
// @Tags Dashboard
// @Produce json
// @Param handle path string true "Dataset handle"
// @Success 200 {object} response.Envelope
// @Router /datasets/{handle}/alerts [get]
func (h *DatasetHandler) Alerts(c *gin.Context) {
	alerts, err := h.service.Alerts(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil, map[string]interface{}{"count": len(alerts)})
}

func respondWithMeta(c *gin.Context, data interface{}, cacheHit bool, start time.Time) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, nil, middleware.Meta(c, start))
}

func parseIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "index must be a non-negative integer")
	}
	return index, nil
}

func parseRequiredInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
