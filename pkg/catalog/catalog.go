// Package catalog holds the preset HDO schedules of the CEZ Distribuce
// continuous measurement programme.
//
// Source: https://www.cezdistribuce.cz/file/edee/distribuce/cezdistribuce_pasmaplatnostintavt_prubehove_mereni.pdf
// (state as of 2024-03-19).
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raterudder/cezhdo/pkg/hdo"
)

const allWeek = "Po - Ne"

// presets is built once at init and never modified afterwards.
var presets = map[string]hdo.Schedule{
	"AKU8V1":  schedule(entry(allWeek, "0:00", "6:00", "19:00", "21:00")),
	"AKU8V2":  schedule(entry(allWeek, "0:00", "5:00", "18:00", "20:00", "23:00", "23:59")),
	"AKU8V3":  schedule(entry(allWeek, "0:00", "4:00", "17:00", "19:00", "22:00", "23:59")),
	"AKU8V4":  schedule(entry(allWeek, "0:00", "6:00", "22:00", "23:59")),
	"AKU8V5":  schedule(entry(allWeek, "1:00", "6:00", "18:00", "21:00")),
	"AKU8V6":  schedule(entry(allWeek, "3:00", "6:00", "15:00", "18:00", "21:00", "23:00")),
	"EMOV1":   schedule(entry(allWeek, "2:00", "6:00", "22:00", "23:00")),
	"AKU16V1": schedule(entry(allWeek, "0:00", "8:00", "13:00", "16:00", "19:00", "23:59")),
	"PTV1":    schedule(entry(allWeek, "0:00", "9:00", "10:00", "11:00", "12:00", "13:00", "14:00", "16:00", "17:00", "23:59")),
	"PTV2":    schedule(entry(allWeek, "0:00", "6:00", "7:00", "9:00", "10:00", "13:00", "14:00", "16:00", "17:00", "23:59")),
	"PTV3":    schedule(entry(allWeek, "0:00", "8:00", "9:00", "12:00", "13:00", "15:00", "16:00", "19:00", "20:00", "23:59")),
	"PTV4":    schedule(entry(allWeek, "0:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "17:00", "18:00", "23:59")),
	"EVV1":    schedule(entry(allWeek, "0:00", "6:00", "7:00", "9:00", "10:00", "13:00", "14:00", "16:00", "17:00", "23:59")),
	"EVV2":    schedule(entry(allWeek, "0:00", "8:00", "9:00", "12:00", "13:00", "15:00", "16:00", "19:00", "20:00", "23:59")),
	"EVV3":    schedule(entry(allWeek, "0:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "17:00", "18:00", "23:59")),
	"TCV1":    schedule(entry(allWeek, "0:00", "9:00", "10:00", "12:00", "13:00", "23:59")),
	"CHLV1":   schedule(entry(allWeek, "3:00", "23:00")),
	"CHLV2":   schedule(entry(allWeek, "0:00", "4:00", "6:00", "22:00")),
	"CHLV3":   schedule(entry(allWeek, "0:00", "4:30", "8:30", "23:59")),
	"CHLV4":   schedule(entry(allWeek, "0:00", "14:00", "18:00", "23:59")),
	"ZAV1": schedule(
		entry("Po - Pa", "0:00", "6:00", "10:00", "23:59"),
		entry("So - Ne", "0:00", "23:59"),
	),
	"ZAV2": schedule(
		entry("Po - Pa", "0:00", "3:00", "7:00", "23:59"),
		entry("So - Ne", "0:00", "23:59"),
	),
	"VIKV1": schedule(
		entry("Pa - Pa", "12:00", "23:59"),
		entry("So - So", "0:00", "23:59"),
		entry("Ne - Ne", "0:00", "22:00"),
	),
	"VYRV1": schedule(entry(allWeek, "0:00", "6:00", "10:00", "16:00", "20:00", "23:59")),
	"VYRV2": schedule(entry(allWeek, "0:00", "7:00", "15:00", "23:59")),
	"VYRV3": schedule(entry(allWeek, "0:00", "7:00", "10:00", "18:00", "23:00", "23:59")),
}

// entry panics on invalid literals so a broken preset fails at startup.
func entry(days string, times ...string) hdo.Entry {
	e, err := hdo.NewEntry(days, times...)
	if err != nil {
		panic(fmt.Errorf("invalid preset entry %q: %w", days, err))
	}
	return e
}

func schedule(entries ...hdo.Entry) hdo.Schedule {
	return hdo.Schedule(entries)
}

// Lookup returns the preset for code, matched case-insensitively. The
// returned schedule is a copy and may be modified by the caller.
func Lookup(code string) (hdo.Schedule, bool) {
	s, ok := presets[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// IsKnownCode reports whether code names a preset.
func IsKnownCode(code string) bool {
	_, ok := presets[strings.ToUpper(code)]
	return ok
}

// ResolveSchedule is Lookup with the bool turned into an error wrapping
// ErrNotFound.
func ResolveSchedule(code string) (hdo.Schedule, error) {
	s, ok := Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return s, nil
}

// Codes returns all preset codes sorted alphabetically.
func Codes() []string {
	codes := make([]string, 0, len(presets))
	for code := range presets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
