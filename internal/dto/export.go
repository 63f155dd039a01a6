package dto

import (
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// ExportJobRequest captures POST /datasets/{handle}/exports payload.
type ExportJobRequest struct {
	Kind   models.ExportKind   `json:"kind" validate:"required,oneof=processed alerts"`
	Format models.ExportFormat `json:"format" validate:"required,oneof=xlsx csv pdf"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID         string              `json:"id"`
	Kind       models.ExportKind   `json:"kind"`
	Format     models.ExportFormat `json:"format"`
	Status     models.ExportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}

// SaveProcessedResponse reports where the processed workbook was written.
type SaveProcessedResponse struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Fallback bool   `json:"fallback"`
}

// SaveProcessedRequest captures POST /datasets/{handle}/export/processed
// payload. Blank Path writes next to the source workbook.
type SaveProcessedRequest struct {
	Path string `json:"path" validate:"omitempty,max=512"`
}
