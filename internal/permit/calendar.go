package permit

import (
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// Calendar indexes the deadlines that fall within the given month by date.
func Calendar(ds *models.Dataset, year int, month time.Month) models.CalendarView {
	view := models.CalendarView{}
	if ds == nil {
		return view
	}
	for _, rec := range ds.Records {
		for i, deadline := range rec.Deadlines {
			if deadline == nil || deadline.Year() != year || deadline.Month() != month {
				continue
			}
			key := deadline.Format(ISODateLayout)
			entries, ok := view[key]
			if !ok {
				entries = &models.CalendarDay{
					Deadline1: []models.CalendarEntry{},
					Deadline2: []models.CalendarEntry{},
					Deadline3: []models.CalendarEntry{},
				}
				view[key] = entries
			}
			slot := entries.Slot(i + 1)
			*slot = append(*slot, models.CalendarEntry{
				ID:           rec.StaffCode,
				Label:        rec.Name2,
				PermitStatus: rec.PermitStatus,
				Category:     string(Classify(rec.PermitStatus)),
			})
		}
	}
	return view
}
