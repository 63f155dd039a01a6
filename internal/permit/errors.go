package permit

import "fmt"

// ValidationError reports a category rule violated by a field value.
type ValidationError struct {
	Category Category
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("%s (%s): %s", e.Field, e.Category, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MissingColumnError reports a dataset lacking a required column.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q not found", e.Column)
}

// RowError addresses a failure to a spreadsheet row (1-based, header is row 1).
type RowError struct {
	Row     int
	Column  string
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s %s", e.Row, e.Column, e.Message)
}

// DateParseError reports a date value that could not be parsed.
type DateParseError struct {
	Field string
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("%s: invalid date %q", e.Field, e.Value)
}
