package models

import (
	"fmt"
	"time"
)

// Roster workbook headers.
const (
	ColumnStaffCode        = "担当者コード"
	ColumnName1            = "氏名１"
	ColumnName2            = "氏名２"
	ColumnPermitStatus     = "在留資格"
	ColumnNationality      = "国籍"
	ColumnCardNumber       = "在留カード番号"
	ColumnBirthDate        = "生年月日"
	ColumnCohort           = "期生"
	ColumnPermissionDate   = "許可年月日"
	ColumnExpirationDate   = "満了年月日"
	ColumnPriorElapsedDays = "既満了日数"
	ColumnElapsedDays      = "満了日数"
	ColumnSkill1Limit      = "特技1号在留期限"
)

// ThresholdCount is the number of configurable alert deadlines per record.
const ThresholdCount = 3

// ExpirationColumnAliases lists accepted headers for the expiration date, in lookup order.
var ExpirationColumnAliases = []string{ColumnExpirationDate, "満了日", "expiration_date"}

// ThresholdColumn returns the header of the i-th (1-based) threshold column.
func ThresholdColumn(i int) string {
	return fmt.Sprintf("設定期限%d", i)
}

// DeadlineColumn returns the header of the i-th (1-based) deadline column.
func DeadlineColumn(i int) string {
	return fmt.Sprintf("期限日%d", i)
}

// Record is one tracked person and permit period.
type Record struct {
	StaffCode        string                     `json:"staffCode"`
	Name1            string                     `json:"name1"`
	Name2            string                     `json:"name2"`
	PermitStatus     string                     `json:"permitStatus"`
	Nationality      string                     `json:"nationality"`
	CardNumber       string                     `json:"cardNumber"`
	BirthDate        *time.Time                 `json:"birthDate,omitempty"`
	Cohort           string                     `json:"cohort"`
	PermissionDate   *time.Time                 `json:"permissionDate,omitempty"`
	ExpirationDate   *time.Time                 `json:"expirationDate,omitempty"`
	PriorElapsedDays *int                       `json:"priorElapsedDays,omitempty"`
	ElapsedDays      *int                       `json:"elapsedDays,omitempty"`
	Thresholds       [ThresholdCount]*int       `json:"thresholds"`
	Deadlines        [ThresholdCount]*time.Time `json:"deadlines"`
	Skill1Limit      *float64                   `json:"skill1Limit,omitempty"`
	Extra            map[string]string          `json:"extra,omitempty"`
	// NumericCells marks columns whose source cell held a number.
	NumericCells map[string]bool `json:"-"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	out.BirthDate = cloneTime(r.BirthDate)
	out.PermissionDate = cloneTime(r.PermissionDate)
	out.ExpirationDate = cloneTime(r.ExpirationDate)
	out.PriorElapsedDays = cloneInt(r.PriorElapsedDays)
	out.ElapsedDays = cloneInt(r.ElapsedDays)
	for i := 0; i < ThresholdCount; i++ {
		out.Thresholds[i] = cloneInt(r.Thresholds[i])
		out.Deadlines[i] = cloneTime(r.Deadlines[i])
	}
	if r.Skill1Limit != nil {
		v := *r.Skill1Limit
		out.Skill1Limit = &v
	}
	if r.Extra != nil {
		out.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	if r.NumericCells != nil {
		out.NumericCells = make(map[string]bool, len(r.NumericCells))
		for k, v := range r.NumericCells {
			out.NumericCells[k] = v
		}
	}
	return out
}

// Dataset is the in-memory roster loaded from a workbook.
type Dataset struct {
	Columns          []string  `json:"columns"`
	ExpirationColumn string    `json:"expirationColumn"`
	Records          []Record  `json:"records"`
	SourcePath       string    `json:"sourcePath"`
	LoadedAt         time.Time `json:"loadedAt"`
}

// HasColumn reports whether the dataset carries the given header.
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// EnsureColumn appends the header when it is missing.
func (d *Dataset) EnsureColumn(name string) {
	if !d.HasColumn(name) {
		d.Columns = append(d.Columns, name)
	}
}

// Mask clears the fields of r whose column is absent from the dataset so that
// in-memory state matches what a persisted workbook can carry.
func (d *Dataset) Mask(r *Record) {
	if !d.HasColumn(ColumnPermissionDate) {
		r.PermissionDate = nil
	}
	if !d.HasColumn(ColumnPriorElapsedDays) {
		r.PriorElapsedDays = nil
	}
	if !d.HasColumn(ColumnBirthDate) {
		r.BirthDate = nil
	}
	for i := 0; i < ThresholdCount; i++ {
		if !d.HasColumn(ThresholdColumn(i + 1)) {
			r.Thresholds[i] = nil
		}
	}
}

// Clone returns a deep copy suitable for use outside the owning session lock.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{
		Columns:          append([]string(nil), d.Columns...),
		ExpirationColumn: d.ExpirationColumn,
		Records:          make([]Record, len(d.Records)),
		SourcePath:       d.SourcePath,
		LoadedAt:         d.LoadedAt,
	}
	for i, rec := range d.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
