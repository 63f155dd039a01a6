package models

// DeadlineStatus tags a deadline date relative to today.
type DeadlineStatus struct {
	Status string `json:"status"`
	Days   int    `json:"days"`
}

// Deadline status tags.
const (
	DeadlineOverdue = "overdue"
	DeadlineOK      = "ok"
)

// Expiration status buckets used for dashboard colouring.
const (
	ExpirationUnknown = "unknown"
	ExpirationExpired = "expired"
	ExpirationUrgent  = "urgent"
	ExpirationWarning = "warning"
	ExpirationCaution = "caution"
	ExpirationSafe    = "safe"
)

// DeadlineView renders one of the three deadline dates of a record.
type DeadlineView struct {
	Threshold *int            `json:"threshold,omitempty"`
	Date      string          `json:"date"`
	Status    *DeadlineStatus `json:"status,omitempty"`
}

// RecordView is the read model of a record with every derived value resolved.
type RecordView struct {
	Index            int            `json:"index"`
	StaffCode        string         `json:"staffCode"`
	Name1            string         `json:"name1"`
	Name2            string         `json:"name2"`
	PermitStatus     string         `json:"permitStatus"`
	Category         string         `json:"category"`
	Nationality      string         `json:"nationality"`
	CardNumber       string         `json:"cardNumber"`
	BirthDate        string         `json:"birthDate"`
	Cohort           string         `json:"cohort"`
	PermissionDate   string         `json:"permissionDate"`
	ExpirationDate   string         `json:"expirationDate"`
	PriorElapsedDays *int           `json:"priorElapsedDays"`
	ElapsedDays      *int           `json:"elapsedDays"`
	DaysToExpiration *int           `json:"daysToExpiration"`
	Deadlines        []DeadlineView `json:"deadlines"`
	Severity         string         `json:"severity,omitempty"`
	ExpirationStatus string         `json:"expirationStatus"`
}

// Summary aggregates dashboard counters over a dataset.
type Summary struct {
	Filename           string `json:"filename"`
	Total              int    `json:"total"`
	Expired            int    `json:"expired"`
	Level1             int    `json:"level1"`
	Level2             int    `json:"level2"`
	Level3             int    `json:"level3"`
	DeadlinePassed     int    `json:"deadlinePassed"`
	ElapsedCapExceeded int    `json:"elapsedCapExceeded"`
}

// CalendarEntry identifies a person whose deadline falls on a calendar day.
type CalendarEntry struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	PermitStatus string `json:"permitStatus"`
	Category     string `json:"category"`
}

// CalendarDay groups entries by deadline slot.
type CalendarDay struct {
	Deadline1 []CalendarEntry `json:"deadline1"`
	Deadline2 []CalendarEntry `json:"deadline2"`
	Deadline3 []CalendarEntry `json:"deadline3"`
}

// Slot returns the entry list for the 1-based deadline slot.
func (d *CalendarDay) Slot(i int) *[]CalendarEntry {
	switch i {
	case 1:
		return &d.Deadline1
	case 2:
		return &d.Deadline2
	default:
		return &d.Deadline3
	}
}

// CalendarView maps YYYY-MM-DD to the deadlines falling on that day.
type CalendarView map[string]*CalendarDay
