package permit

import (
	"sort"
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// Alert is a record whose remaining days reached one of its thresholds.
type Alert struct {
	Index            int
	Record           models.Record
	DaysToExpiration int
}

// Alerts lists records with an expiration date whose days to expiration are
// at or below any of their thresholds, soonest first.
func Alerts(ds *models.Dataset, today time.Time) []Alert {
	if ds == nil {
		return nil
	}
	var alerts []Alert
	for i, rec := range ds.Records {
		days := DaysToExpiration(rec.ExpirationDate, today)
		if days == nil {
			continue
		}
		for _, threshold := range rec.Thresholds {
			if threshold != nil && *days <= *threshold {
				alerts = append(alerts, Alert{Index: i, Record: rec, DaysToExpiration: *days})
				break
			}
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].DaysToExpiration < alerts[j].DaysToExpiration
	})
	return alerts
}
