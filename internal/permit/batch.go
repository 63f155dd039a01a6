package permit

import (
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// Recompute refreshes the derived fields of every record. It never fails: a
// record missing the inputs of a derived value gets nil for it.
func Recompute(ds *models.Dataset) {
	if ds == nil {
		return
	}
	for i := range ds.Records {
		RecomputeRecord(&ds.Records[i])
	}
}

// RecomputeRecord refreshes elapsed days and deadlines of one record.
func RecomputeRecord(r *models.Record) {
	r.ElapsedDays = ElapsedDaysOf(*r)
	r.Deadlines = Deadlines(r.ExpirationDate, r.Thresholds)
}

// ParseSkill1Limit parses the category day-limit cell. Skill1 rows require a
// numeric value and fail with a RowError addressed to the spreadsheet row;
// other rows get nil on blank or invalid input.
func ParseSkill1Limit(row int, status, raw string) (*float64, error) {
	text := strings.TrimSpace(Normalize(raw))
	value, err := strconv.ParseFloat(text, 64)
	valid := text != "" && err == nil && !math.IsNaN(value) && !math.IsInf(value, 0)
	if valid {
		return &value, nil
	}
	if Classify(status) != CategorySkill1 {
		return nil, nil
	}
	msg := "is required for 特定技能1号"
	if text != "" {
		msg = "must be numeric"
	}
	return nil, &RowError{Row: row, Column: models.ColumnSkill1Limit, Message: msg}
}
