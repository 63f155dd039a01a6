package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/permit-deadline-api/internal/dto"
	"github.com/noah-isme/permit-deadline-api/internal/models"
	"github.com/noah-isme/permit-deadline-api/internal/service"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
	"github.com/noah-isme/permit-deadline-api/pkg/response"
)

type datasetReader interface {
	Snapshot(ctx context.Context, handle string) (*models.Dataset, uint64, error)
}

type workbookExporter interface {
	Resolve(path string) (string, error)
	SaveProcessed(ctx context.Context, ds *models.Dataset, target string) (*models.ExportResult, error)
	Render(ds *models.Dataset, kind models.ExportKind, format models.ExportFormat, today time.Time) (*service.Document, error)
}

type exportJobService interface {
	CreateJob(ctx context.Context, handle string, req dto.ExportJobRequest) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler serves synchronous workbook exports and export jobs.
type ExportHandler struct {
	datasets datasetReader
	workbook workbookExporter
	jobs     exportJobService
	now      func() time.Time
}

// NewExportHandler constructs the handler. jobs may be nil when background
// exports are disabled.
func NewExportHandler(datasets datasetReader, workbook workbookExporter, jobs exportJobService) *ExportHandler {
	return &ExportHandler{datasets: datasets, workbook: workbook, jobs: jobs, now: time.Now}
}

// SaveProcessed godoc
// @Summary Write the processed workbook with live formulas
// @Tags Exports
// @Accept json
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param payload body dto.SaveProcessedRequest false "Target path relative to the workbook directory"
// @Success 201 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /datasets/{handle}/export/processed [post]
func (h *ExportHandler) SaveProcessed(c *gin.Context) {
	var req dto.SaveProcessedRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
			return
		}
	}
	target := ""
	if strings.TrimSpace(req.Path) != "" {
		resolved, err := h.workbook.Resolve(req.Path)
		if err != nil {
			response.Error(c, err)
			return
		}
		target = resolved
	}
	ds, _, err := h.datasets.Snapshot(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.workbook.SaveProcessed(c.Request.Context(), ds, target)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Export-Fallback", strconv.FormatBool(result.Fallback))
	response.Created(c, dto.SaveProcessedResponse{
		Path:     result.Path,
		Filename: result.Filename,
		Fallback: result.Fallback,
	})
}

// DownloadAlerts godoc
// @Summary Download the alert list
// @Tags Exports
// @Produce octet-stream
// @Param handle path string true "Dataset handle"
// @Param format query string false "xlsx|csv|pdf, defaults to xlsx"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /datasets/{handle}/export/alerts [get]
func (h *ExportHandler) DownloadAlerts(c *gin.Context) {
	format := models.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(models.ExportFormatXLSX)))))
	ds, _, err := h.datasets.Snapshot(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.workbook.Render(ds, models.ExportKindAlerts, format, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, int64(len(doc.Body)), bytes.NewReader(doc.Body))
}

// CreateJob godoc
// @Summary Queue a background export
// @Tags Exports
// @Accept json
// @Produce json
// @Param handle path string true "Dataset handle"
// @Param payload body dto.ExportJobRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /datasets/{handle}/exports [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "background exports are disabled"))
		return
	}
	var req dto.ExportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), c.Param("handle"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// JobStatus godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "background exports are disabled"))
		return
	}
	status, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "background exports are disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.jobs.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, download.Filename, download.ContentType, info.Size(), download.File)
}
