package permit

import (
	"path/filepath"
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// Summarize aggregates dashboard counters. Expired records are counted apart
// from the severity levels.
func Summarize(ds *models.Dataset, today time.Time, policy Policy) models.Summary {
	summary := models.Summary{}
	if ds == nil {
		return summary
	}
	summary.Total = len(ds.Records)
	if ds.SourcePath != "" {
		summary.Filename = filepath.Base(ds.SourcePath)
	}

	for _, rec := range ds.Records {
		if DeadlinePassed(rec.Deadlines, today) {
			summary.DeadlinePassed++
		}
		if policy.CapExceeded(rec.ElapsedDays) {
			summary.ElapsedCapExceeded++
		}

		days := DaysToExpiration(rec.ExpirationDate, today)
		if days == nil {
			continue
		}
		if *days < 0 {
			summary.Expired++
			continue
		}
		level, ok := ClassifySeverity(days, ThresholdsFor(rec, policy.Thresholds))
		if !ok {
			continue
		}
		switch level {
		case Level1:
			summary.Level1++
		case Level2:
			summary.Level2++
		case Level3:
			summary.Level3++
		}
	}
	return summary
}
