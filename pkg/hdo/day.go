package hdo

import (
	"strings"
	"time"
)

// DayOfWeek is a weekday ordinal where Monday is 0 and Sunday is 6.
type DayOfWeek int

const (
	Monday DayOfWeek = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// dayAbbrevs are the Czech two letter abbreviations used by CEZ, indexed by
// ordinal.
var dayAbbrevs = [7]string{"Po", "Ut", "St", "Ct", "Pa", "So", "Ne"}

// Days returns all seven days in ordinal order.
func Days() []DayOfWeek {
	return []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// DayOfWeekOf returns the DayOfWeek of t in t's location.
func DayOfWeekOf(t time.Time) DayOfWeek {
	// time.Weekday starts on Sunday
	return DayOfWeek((int(t.Weekday()) + 6) % 7)
}

// Valid reports whether d is one of the seven days.
func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Abbrev returns the two letter abbreviation of the day.
func (d DayOfWeek) Abbrev() string {
	if !d.Valid() {
		return ""
	}
	return dayAbbrevs[d]
}

func (d DayOfWeek) String() string {
	return d.Abbrev()
}

// ParseDay converts a two letter abbreviation into a DayOfWeek.
func ParseDay(abbrev string) (DayOfWeek, error) {
	for i, a := range dayAbbrevs {
		if a == abbrev {
			return DayOfWeek(i), nil
		}
	}
	return 0, &ParseError{Field: "day", Input: abbrev, Err: ErrUnknownDayAbbreviation}
}

// DayRange is an inclusive range of days. It does not wrap around the end of
// the week: a range whose Start is after its End contains no days.
type DayRange struct {
	Start DayOfWeek
	End   DayOfWeek
}

const dayRangeSeparator = " - "

// ParseDayRange parses a range such as "Po - Pa".
func ParseDayRange(text string) (DayRange, error) {
	start, end, ok := strings.Cut(text, dayRangeSeparator)
	if !ok {
		return DayRange{}, &ParseError{Field: "PLATNOST", Input: text, Err: ErrMalformed}
	}
	s, err := ParseDay(start)
	if err != nil {
		return DayRange{}, &ParseError{Field: "PLATNOST", Input: text, Err: ErrUnknownDayAbbreviation}
	}
	e, err := ParseDay(end)
	if err != nil {
		return DayRange{}, &ParseError{Field: "PLATNOST", Input: text, Err: ErrUnknownDayAbbreviation}
	}
	return DayRange{Start: s, End: e}, nil
}

// Contains reports whether day falls within the range using plain ordinal
// comparison.
func (r DayRange) Contains(day DayOfWeek) bool {
	return r.Start <= day && day <= r.End
}

func (r DayRange) String() string {
	return r.Start.Abbrev() + dayRangeSeparator + r.End.Abbrev()
}
