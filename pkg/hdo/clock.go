package hdo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTime parses H:MM or HH:MM. An empty string parses to 00:00.
func ParseTime(text string) (TimeOfDay, error) {
	if text == "" {
		return TimeOfDay{}, nil
	}
	invalid := &ParseError{Field: "time", Input: text, Err: ErrInvalidTime}
	h, m, ok := strings.Cut(text, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return TimeOfDay{}, invalid
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 || !isDigits(h) {
		return TimeOfDay{}, invalid
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || !isDigits(m) {
		return TimeOfDay{}, invalid
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// isDigits rejects the signs strconv.Atoi would otherwise accept.
func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TimeOfDayOf returns the wall clock time of t, truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// Before reports whether t is earlier in the day than o.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.offset() < o.offset()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%d:%02d", t.Hour, t.Minute)
}

// TimeWindow is an on/off pair. When On is after Off the window spans
// midnight.
type TimeWindow struct {
	On  TimeOfDay
	Off TimeOfDay
}

// Wraps reports whether the window spans midnight.
func (w TimeWindow) Wraps() bool {
	return w.Off.Before(w.On)
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w TimeWindow) Contains(t TimeOfDay) bool {
	return w.contains(t.offset())
}

// ContainsTime is like Contains but keeps the seconds of t, so 23:00:30 is
// outside a window that switches off at 23:00.
func (w TimeWindow) ContainsTime(t time.Time) bool {
	// wall clock fields rather than t.Sub(midnight), which is off by an hour
	// on DST transition days
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return w.contains(offset)
}

func (w TimeWindow) contains(x time.Duration) bool {
	on, off := w.On.offset(), w.Off.offset()
	if on <= off {
		return on <= x && x <= off
	}
	return x >= on || x <= off
}

func (w TimeWindow) String() string {
	return w.On.String() + "-" + w.Off.String()
}
