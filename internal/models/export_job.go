package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportKind enumerates what an export job renders.
type ExportKind string

const (
	// ExportKindProcessed is the whole roster with live formulas.
	ExportKindProcessed ExportKind = "processed"
	// ExportKindAlerts is the alert list as plain values.
	ExportKindAlerts ExportKind = "alerts"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv; charset=utf-8"
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is persisted background export metadata.
type ExportJob struct {
	ID            string          `db:"id" json:"id"`
	DatasetHandle string          `db:"dataset_handle" json:"datasetHandle"`
	Params        ExportJobParams `db:"params" json:"params"`
	Status        ExportStatus    `db:"status" json:"status"`
	Progress      int             `db:"progress" json:"progress"`
	FilePath      *string         `db:"file_path" json:"-"`
	ResultURL     *string         `db:"result_url" json:"resultUrl,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	FinishedAt    *time.Time      `db:"finished_at" json:"finishedAt,omitempty"`
	ErrorMessage  *string         `db:"error_message" json:"errorMessage,omitempty"`
}

// ExportJobParams stores request options persisted as JSONB.
type ExportJobParams struct {
	Kind       ExportKind   `json:"kind"`
	Format     ExportFormat `json:"format"`
	SourceFile string       `json:"sourceFile,omitempty"`
	Rows       int          `json:"rows,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ExportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ExportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ExportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportJobParams", value)
	}
	if len(data) == 0 {
		*p = ExportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export job params: %w", err)
	}
	return nil
}

// ExportResult describes a stored export file.
type ExportResult struct {
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Fallback  bool      `json:"fallback"`
	URL       string    `json:"url,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}
