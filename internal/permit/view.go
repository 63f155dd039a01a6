package permit

import (
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// BuildView resolves the read model of a record as of today.
func BuildView(index int, r models.Record, today time.Time, defaults [models.ThresholdCount]int) models.RecordView {
	category := Classify(r.PermitStatus)
	days := DaysToExpiration(r.ExpirationDate, today)

	view := models.RecordView{
		Index:            index,
		StaffCode:        r.StaffCode,
		Name1:            r.Name1,
		Name2:            r.Name2,
		PermitStatus:     r.PermitStatus,
		Category:         string(category),
		Nationality:      r.Nationality,
		CardNumber:       r.CardNumber,
		BirthDate:        FormatDate(r.BirthDate),
		Cohort:           r.Cohort,
		PermissionDate:   FormatDate(r.PermissionDate),
		ExpirationDate:   FormatDate(r.ExpirationDate),
		PriorElapsedDays: r.PriorElapsedDays,
		ElapsedDays:      r.ElapsedDays,
		DaysToExpiration: days,
		Deadlines:        make([]models.DeadlineView, models.ThresholdCount),
		ExpirationStatus: ExpirationStatus(days),
	}
	for i := range view.Deadlines {
		view.Deadlines[i] = models.DeadlineView{
			Threshold: r.Thresholds[i],
			Date:      FormatDate(r.Deadlines[i]),
			Status:    StatusOf(r.Deadlines[i], today),
		}
	}
	if level, ok := ClassifySeverity(days, ThresholdsFor(r, defaults)); ok {
		view.Severity = string(level)
	}
	return view
}
