// Package hdo models CEZ Distribuce HDO (low/high tariff) schedules and
// evaluates whether the low tariff applies at a given time.
//
// A Schedule is a list of entries, each scoped to a DayRange and holding up
// to ten on/off slots. Times are wall clock times; callers pass instants
// already converted to the tariff's location (Europe/Prague for CEZ).
package hdo
