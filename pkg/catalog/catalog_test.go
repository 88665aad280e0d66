package catalog

import (
	"testing"
	"time"

	"github.com/raterudder/cezhdo/pkg/hdo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestLookup(t *testing.T) {
	t.Run("CHLV1", func(t *testing.T) {
		s, ok := Lookup("CHLV1")
		require.True(t, ok)
		require.Len(t, s, 1)
		assert.Equal(t, "Po - Ne", s[0].Days.String())
		assert.Equal(t, []hdo.TimeWindow{{On: hdo.TimeOfDay{Hour: 3}, Off: hdo.TimeOfDay{Hour: 23}}}, s[0].Windows())

		assert.True(t, hdo.InstantActive(s, at(1, 12, 0)))
		assert.False(t, hdo.InstantActive(s, at(1, 1, 0)))
	})

	t.Run("case insensitive", func(t *testing.T) {
		s, ok := Lookup("chlv1")
		require.True(t, ok)
		assert.Len(t, s, 1)
		assert.True(t, IsKnownCode("Zav1"))
	})

	t.Run("unknown", func(t *testing.T) {
		s, ok := Lookup("NOPE")
		assert.False(t, ok)
		assert.Nil(t, s)
		assert.False(t, IsKnownCode("NOPE"))

		_, err := ResolveSchedule("NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("copies are independent", func(t *testing.T) {
		s, ok := Lookup("CHLV1")
		require.True(t, ok)
		s[0].Slots[0].On = hdo.TimeOfDay{Hour: 1}

		again, ok := Lookup("CHLV1")
		require.True(t, ok)
		assert.Equal(t, 3, again[0].Slots[0].On.Hour)
	})
}

func TestZAV1(t *testing.T) {
	s, err := ResolveSchedule("ZAV1")
	require.NoError(t, err)
	require.Len(t, s, 2)

	// Saturday 6th and Sunday 7th
	for _, day := range []int{6, 7} {
		for h := 0; h < 24; h++ {
			for _, m := range []int{0, 30, 59} {
				assert.True(t, hdo.InstantActive(s, at(day, h, m)), "day %d %d:%02d", day, h, m)
			}
		}
	}

	// Tuesday 2nd
	assert.True(t, hdo.InstantActive(s, at(2, 0, 0)))
	assert.True(t, hdo.InstantActive(s, at(2, 6, 0)))
	assert.False(t, hdo.InstantActive(s, at(2, 6, 1)))
	assert.False(t, hdo.InstantActive(s, at(2, 9, 59)))
	assert.True(t, hdo.InstantActive(s, at(2, 10, 0)))
	assert.True(t, hdo.InstantActive(s, at(2, 23, 59)))
}

func TestVIKV1(t *testing.T) {
	s, ok := Lookup("VIKV1")
	require.True(t, ok)
	require.Len(t, s, 3)

	assert.False(t, hdo.InstantActive(s, at(4, 13, 0))) // Thursday
	assert.False(t, hdo.InstantActive(s, at(5, 11, 0))) // Friday morning
	assert.True(t, hdo.InstantActive(s, at(5, 13, 0)))
	assert.True(t, hdo.InstantActive(s, at(6, 3, 0)))
	assert.True(t, hdo.InstantActive(s, at(7, 21, 0)))
	assert.False(t, hdo.InstantActive(s, at(7, 22, 30)))
}

func TestCodes(t *testing.T) {
	codes := Codes()
	assert.Len(t, codes, 26)
	assert.IsNonDecreasing(t, codes)
	for _, code := range codes {
		s, ok := Lookup(code)
		require.True(t, ok, code)
		assert.NotEmpty(t, s, code)
		for _, e := range s {
			assert.NotEmpty(t, e.Windows(), code)
		}
	}
}

func TestForecastFromPreset(t *testing.T) {
	s, ok := Lookup("AKU8V1")
	require.True(t, ok)

	f := hdo.HourlyForecast(s, at(1, 8, 0), hdo.ForecastHours)
	require.Len(t, f, hdo.ForecastHours)
	for i, h := range f {
		hour := h.Start.Hour()
		assert.Equal(t, hour == 0 || hour == 19, h.Active, "bucket %d", i)
	}
}
