package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FlexString accepts a JSON string, number or null. Form inputs post day
// counts either way.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the raw text.
func (f FlexString) String() string {
	return string(f)
}

// OpenDatasetRequest captures POST /datasets payload. Path is resolved
// against the workbook directory; blank opens the default workbook.
type OpenDatasetRequest struct {
	Path string `json:"path" validate:"omitempty,max=512"`
}

// DatasetResponse describes a loaded dataset session.
type DatasetResponse struct {
	Handle   string    `json:"handle"`
	Filename string    `json:"filename"`
	Columns  []string  `json:"columns"`
	Records  int       `json:"records"`
	Version  uint64    `json:"version"`
	LoadedAt time.Time `json:"loadedAt"`
}

// RecordFilter narrows GET /datasets/{handle}/records.
type RecordFilter struct {
	Page     int
	PageSize int
	Category string
	Severity string
	Query    string
}

// RecordRequest captures POST /datasets/{handle}/records payload. Dates use
// YYYY-MM-DD or YYYY/MM/DD; blank thresholds fall back to the defaults.
type RecordRequest struct {
	StaffCode        string       `json:"staffCode" validate:"max=64"`
	Name1            string       `json:"name1" validate:"max=128"`
	Name2            string       `json:"name2" validate:"max=128"`
	PermitStatus     string       `json:"permitStatus" validate:"max=128"`
	Nationality      string       `json:"nationality" validate:"max=64"`
	CardNumber       string       `json:"cardNumber" validate:"max=32"`
	BirthDate        string       `json:"birthDate" validate:"max=32"`
	Cohort           string       `json:"cohort" validate:"max=32"`
	PermissionDate   string       `json:"permissionDate" validate:"max=32"`
	ExpirationDate   string       `json:"expirationDate" validate:"max=32"`
	PriorElapsedDays FlexString   `json:"priorElapsedDays" validate:"max=16"`
	Skill1Limit      FlexString   `json:"skill1Limit" validate:"max=16"`
	Thresholds       []FlexString `json:"thresholds" validate:"max=3,dive,max=16"`
}

// RecordPatch captures PUT /datasets/{handle}/records/{index} payload. Nil
// fields are left untouched; blank or invalid dates are ignored.
type RecordPatch struct {
	StaffCode        *string       `json:"staffCode" validate:"omitempty,max=64"`
	Name1            *string       `json:"name1" validate:"omitempty,max=128"`
	Name2            *string       `json:"name2" validate:"omitempty,max=128"`
	PermitStatus     *string       `json:"permitStatus" validate:"omitempty,max=128"`
	Nationality      *string       `json:"nationality" validate:"omitempty,max=64"`
	CardNumber       *string       `json:"cardNumber" validate:"omitempty,max=32"`
	BirthDate        *string       `json:"birthDate" validate:"omitempty,max=32"`
	Cohort           *string       `json:"cohort" validate:"omitempty,max=32"`
	PermissionDate   *string       `json:"permissionDate" validate:"omitempty,max=32"`
	ExpirationDate   *string       `json:"expirationDate" validate:"omitempty,max=32"`
	PriorElapsedDays *FlexString   `json:"priorElapsedDays" validate:"omitempty,max=16"`
	Skill1Limit      *FlexString   `json:"skill1Limit" validate:"omitempty,max=16"`
	Thresholds       []*FlexString `json:"thresholds" validate:"max=3"`
}
