package hdo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDayAbbreviation is returned when a day range names a day that
	// is not one of Po, Ut, St, Ct, Pa, So, Ne.
	ErrUnknownDayAbbreviation = errors.New("unknown day abbreviation")
	// ErrMalformed is returned when a day range is missing its separator or an
	// entry is missing its day range entirely.
	ErrMalformed = errors.New("malformed")
	// ErrInvalidTime is returned for clock strings that are not H:MM or HH:MM.
	ErrInvalidTime = errors.New("invalid time")
)

// ParseError describes a single field that failed to parse. Err is always one
// of the sentinel errors above so callers can use errors.Is.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s (%q): %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
