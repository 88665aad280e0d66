package hdo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	seen := map[string]bool{}
	for i, d := range Days() {
		assert.Equal(t, i, int(d))
		assert.False(t, seen[d.Abbrev()], "duplicate abbreviation %s", d.Abbrev())
		seen[d.Abbrev()] = true

		parsed, err := ParseDay(d.Abbrev())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
	assert.Len(t, seen, 7)

	_, err := ParseDay("Mo")
	assert.ErrorIs(t, err, ErrUnknownDayAbbreviation)
}

func TestDayOfWeekOf(t *testing.T) {
	// 2024-01-01 is a Monday
	monday := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, d := range Days() {
		assert.Equal(t, d, DayOfWeekOf(monday.AddDate(0, 0, i)))
	}
}

func TestDayRange(t *testing.T) {
	t.Run("full week", func(t *testing.T) {
		r, err := ParseDayRange("Po - Ne")
		require.NoError(t, err)
		for _, d := range Days() {
			assert.True(t, r.Contains(d), "day %s", d)
		}
	})

	t.Run("single day", func(t *testing.T) {
		r, err := ParseDayRange("Pa - Pa")
		require.NoError(t, err)
		for _, d := range Days() {
			assert.Equal(t, d == Friday, r.Contains(d), "day %s", d)
		}
	})

	t.Run("workdays", func(t *testing.T) {
		r, err := ParseDayRange("Po - Pa")
		require.NoError(t, err)
		assert.True(t, r.Contains(Monday))
		assert.True(t, r.Contains(Friday))
		assert.False(t, r.Contains(Saturday))
		assert.Equal(t, "Po - Pa", r.String())
	})

	t.Run("reversed range does not wrap", func(t *testing.T) {
		r, err := ParseDayRange("Pa - Po")
		require.NoError(t, err)
		for _, d := range Days() {
			assert.False(t, r.Contains(d), "day %s", d)
		}
	})

	t.Run("unknown abbreviation", func(t *testing.T) {
		_, err := ParseDayRange("Po - Xx")
		assert.ErrorIs(t, err, ErrUnknownDayAbbreviation)

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "PLATNOST", perr.Field)
		assert.Equal(t, "Po - Xx", perr.Input)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := ParseDayRange("Po-Ne")
		assert.ErrorIs(t, err, ErrMalformed)
		_, err = ParseDayRange("")
		assert.ErrorIs(t, err, ErrMalformed)
	})
}
