package permit

import (
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// Deadline returns expiration - threshold days, or nil when either is absent.
func Deadline(expiration *time.Time, threshold *int) *time.Time {
	if expiration == nil || threshold == nil {
		return nil
	}
	d := AddDays(*expiration, -*threshold)
	return &d
}

// Deadlines computes every deadline slot of a record.
func Deadlines(expiration *time.Time, thresholds [models.ThresholdCount]*int) [models.ThresholdCount]*time.Time {
	var out [models.ThresholdCount]*time.Time
	for i, threshold := range thresholds {
		out[i] = Deadline(expiration, threshold)
	}
	return out
}

// DaysToExpiration returns the days from today until expiration; negative once expired.
func DaysToExpiration(expiration *time.Time, today time.Time) *int {
	if expiration == nil {
		return nil
	}
	days := DaysBetween(today, *expiration)
	return &days
}

// StatusOf tags a deadline as overdue (days past) or ok (days remaining).
func StatusOf(deadline *time.Time, today time.Time) *models.DeadlineStatus {
	if deadline == nil {
		return nil
	}
	days := DaysBetween(today, *deadline)
	if days < 0 {
		return &models.DeadlineStatus{Status: models.DeadlineOverdue, Days: -days}
	}
	return &models.DeadlineStatus{Status: models.DeadlineOK, Days: days}
}

// DeadlinePassed reports whether any deadline is strictly before today.
func DeadlinePassed(deadlines [models.ThresholdCount]*time.Time, today time.Time) bool {
	today = DateOf(today)
	for _, d := range deadlines {
		if d != nil && DateOf(*d).Before(today) {
			return true
		}
	}
	return false
}

// ExpirationStatus buckets days-to-expiration for dashboard colouring.
func ExpirationStatus(days *int) string {
	switch {
	case days == nil:
		return models.ExpirationUnknown
	case *days < 0:
		return models.ExpirationExpired
	case *days <= 7:
		return models.ExpirationUrgent
	case *days <= 30:
		return models.ExpirationWarning
	case *days <= 90:
		return models.ExpirationCaution
	default:
		return models.ExpirationSafe
	}
}
