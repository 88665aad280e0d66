package hdo

import (
	"time"
)

// ForecastHours is the number of hourly buckets produced for a day-ahead
// forecast: today and tomorrow.
const ForecastHours = 48

// InstantActive reports whether the low tariff applies at instant. Every
// complete window of every entry whose day range contains the instant's
// weekday is tested with midnight-wrapping containment; any hit wins.
//
// This is the authoritative answer for "is the low tariff on right now".
func InstantActive(s Schedule, instant time.Time) bool {
	for _, e := range s.matching(DayOfWeekOf(instant)) {
		for _, w := range e.Windows() {
			if w.ContainsTime(instant) {
				return true
			}
		}
	}
	return false
}

// ForecastHour is one hourly bucket of a forecast.
type ForecastHour struct {
	Start  time.Time
	Active bool
}

// HourlyForecast returns hours buckets starting at local midnight of day.
//
// Each bucket is computed from markers rather than windows: the state starts
// false and every on or off time whose hour equals the bucket's hour, visited
// in entry then slot order (on before off), overwrites it. Minutes are
// discarded, so a window such as 3:00-23:00 is only reported on in the 3:00
// bucket. The weekday of day is used for every bucket, including those that
// fall on the following day. Both quirks are kept for compatibility with
// existing forecast consumers; use InstantActive for precise answers.
//
// Buckets past the first day match markers on their hour of day (ts.Hour()),
// so tomorrow repeats today's pattern. The CEZ integration compared markers
// against the raw offset 24..47 instead and never reported those hours on.
func HourlyForecast(s Schedule, day time.Time, hours int) []ForecastHour {
	if hours <= 0 {
		return nil
	}
	start := StartOfDay(day)
	entries := s.matching(DayOfWeekOf(start))

	out := make([]ForecastHour, hours)
	for i := range out {
		ts := start.Add(time.Duration(i) * time.Hour)
		out[i] = ForecastHour{
			Start:  ts,
			Active: markerState(entries, ts.Hour()),
		}
	}
	return out
}

func markerState(entries []Entry, hour int) bool {
	var on bool
	for _, e := range entries {
		for _, s := range e.Slots {
			if s.HasOn && s.On.Hour == hour {
				on = true
			}
			if s.HasOff && s.Off.Hour == hour {
				on = false
			}
		}
	}
	return on
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EvaluationResult is the combined answer for one instant.
type EvaluationResult struct {
	Active   bool
	Forecast []ForecastHour
}

// Evaluate returns the current state at instant and a forecast of hours
// buckets starting at midnight of the instant's day.
func Evaluate(s Schedule, instant time.Time, hours int) EvaluationResult {
	return EvaluationResult{
		Active:   InstantActive(s, instant),
		Forecast: HourlyForecast(s, instant, hours),
	}
}
