package permit

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Field names used in validation errors.
const (
	FieldPriorElapsedDays = "priorElapsedDays"
	FieldPermissionDate   = "permissionDate"
	FieldExpirationDate   = "expirationDate"
	FieldBirthDate        = "birthDate"
	FieldThreshold        = "threshold"
)

// ParsePriorElapsedDays validates the prior elapsed days input against the
// category rules and returns the parsed value. A blank input yields nil.
// The caller must apply the value only when err is nil.
func ParsePriorElapsedDays(category Category, raw string) (*int, error) {
	text := strings.TrimSpace(Normalize(raw))
	rule := ruleOf(category)

	switch rule.prior {
	case priorForbidden:
		if text != "" {
			return nil, &ValidationError{Category: category, Field: FieldPriorElapsedDays, Message: "must be blank"}
		}
		return nil, nil
	case priorRequired:
		value, ok := parseInteger(text)
		if !ok || value < 0 {
			return nil, &ValidationError{Category: category, Field: FieldPriorElapsedDays, Message: "required, must be an integer >= 0"}
		}
		return &value, nil
	default:
		if text == "" {
			return nil, nil
		}
		value, ok := parseInteger(text)
		if !ok {
			return nil, &ValidationError{Category: category, Field: FieldPriorElapsedDays, Message: "must be an integer"}
		}
		return &value, nil
	}
}

// ValidatePriorElapsedDays re-checks an already parsed value, typically after
// the status of a record changed.
func ValidatePriorElapsedDays(category Category, value *int) error {
	raw := ""
	if value != nil {
		raw = strconv.Itoa(*value)
	}
	_, err := ParsePriorElapsedDays(category, raw)
	return err
}

// ParseDate parses a calendar date from user input. Blank input yields nil.
// Dates before 1900 are rejected since spreadsheet serials cannot carry them.
func ParseDate(field, raw string) (*time.Time, error) {
	text := strings.TrimSpace(Normalize(raw))
	if text == "" {
		return nil, nil
	}
	for _, layout := range inputDateLayouts {
		t, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		if t.Year() < 1900 {
			return nil, &ValidationError{Field: field, Message: "date must not be before 1900"}
		}
		d := DateOf(t)
		return &d, nil
	}
	return nil, &DateParseError{Field: field, Value: raw}
}

// MaxDayCount bounds every parsed day count so date arithmetic cannot
// overflow.
const MaxDayCount = math.MaxInt32

// ParseThreshold parses a threshold day count. Numeric input is floored and
// negative, oversized or non-numeric input yields nil.
func ParseThreshold(raw string) *int {
	text := strings.TrimSpace(Normalize(raw))
	if text == "" {
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > MaxDayCount {
		return nil
	}
	v := int(math.Floor(f))
	return &v
}

func parseInteger(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(text); err == nil {
		return v, v >= -MaxDayCount && v <= MaxDayCount
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > MaxDayCount {
		return 0, false
	}
	return int(f), true
}

// ParseCount parses a day count read back from a workbook without applying
// category rules. Blank input yields nil.
func ParseCount(field, raw string) (*int, error) {
	text := strings.TrimSpace(Normalize(raw))
	if text == "" {
		return nil, nil
	}
	value, ok := parseInteger(text)
	if !ok {
		return nil, &ValidationError{Field: field, Message: "must be an integer"}
	}
	return &value, nil
}
