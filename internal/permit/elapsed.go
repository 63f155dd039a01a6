package permit

import (
	"time"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// ElapsedDays computes the cumulative elapsed-day count of a permit period:
// prior + (expiration - permission + 1). Categories that never accrue yield
// nil, as does a missing date or, for categories other than Skill1, a missing
// prior count.
func ElapsedDays(status string, permission, expiration *time.Time, prior *int) *int {
	if permission == nil || expiration == nil {
		return nil
	}
	rule := ruleFor(Normalize(status))
	if !rule.accrues {
		return nil
	}

	carried := 0
	switch {
	case prior != nil:
		carried = *prior
	case !rule.missingPriorAsZero:
		return nil
	}

	base := DaysBetween(*permission, *expiration) + 1
	total := carried + base
	return &total
}

// ElapsedDaysOf is ElapsedDays applied to a record.
func ElapsedDaysOf(r models.Record) *int {
	return ElapsedDays(r.PermitStatus, r.PermissionDate, r.ExpirationDate, r.PriorElapsedDays)
}
