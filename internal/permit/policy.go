package permit

import "github.com/noah-isme/permit-deadline-api/internal/models"

// Policy carries the tunable constants of the dashboard aggregates.
type Policy struct {
	// GraceDays is added to a record's elapsed days before comparing with CapDays.
	GraceDays int
	// CapDays is the legal duration cap; exceeding it is strict.
	CapDays    int
	Thresholds [models.ThresholdCount]int
}

// DefaultPolicy returns grace 184, cap 1826 and thresholds 90/60/30.
func DefaultPolicy() Policy {
	return Policy{GraceDays: 184, CapDays: 1826, Thresholds: DefaultThresholds}
}

// CapExceeded reports whether elapsed + grace goes past the cap.
func (p Policy) CapExceeded(elapsed *int) bool {
	return elapsed != nil && *elapsed+p.GraceDays > p.CapDays
}
