package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validation failure kinds, matched with errors.Is.
var (
	ErrInvalidDate     = errors.New("invalid calendar date")
	ErrRangeOrder      = errors.New("start date is after end date")
	ErrMissingArgument = errors.New("missing required argument")
)

// ValidationError is a client-side argument error raised before any
// transport call is made.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(field, value string) (time.Time, error) {
	if !datePattern.MatchString(value) {
		return time.Time{}, &ValidationError{Field: field, Value: value, Err: ErrInvalidDate}
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Value: value, Err: ErrInvalidDate}
	}
	return t, nil
}

// ValidateDateRange checks that both bounds are calendar dates and that
// start is not after end.
func ValidateDateRange(start, end string) error {
	s, err := ParseDate("startDate", start)
	if err != nil {
		return err
	}
	e, err := ParseDate("endDate", end)
	if err != nil {
		return err
	}
	if s.After(e) {
		return &ValidationError{Field: "startDate", Value: start + ".." + end, Err: ErrRangeOrder}
	}
	return nil
}

// RequireText rejects empty or whitespace-only arguments.
func RequireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Err: ErrMissingArgument}
	}
	return nil
}
