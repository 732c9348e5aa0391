package assignment

import (
	"time"

	"github.com/avolkoff/tourbooking/internal/domain"
)

// Availability credits. Full credit only ever comes from explicit schedule
// data; a guide with nothing on file gets the lower "likely available"
// credit.
const (
	availabilityFull              = 25.0
	availabilityAssumed           = 20.0
	availabilityOverrideOffHours  = 15.0
	availabilityRecurringOffHours = 10.0
)

// resolveAvailability walks the resolution order: default day set, one-off
// date override, recurring weekly slot, then the likely-available fallback.
// First match wins, there is no blending between levels.
func resolveAvailability(guide *domain.Guide, records []domain.GuideAvailability, visitDate time.Time, visitTime string) float64 {
	if !guide.WorksOn(visitDate.Weekday()) {
		return 0
	}

	requested, hasTime := minutesOfDay(visitTime)

	for _, rec := range records {
		if !rec.MatchesDate(visitDate) {
			continue
		}
		if !rec.IsAvailable {
			return 0
		}
		if !hasTime || withinSlot(requested, rec.StartTime, rec.EndTime) {
			return availabilityFull
		}
		return availabilityOverrideOffHours
	}

	matchedWeekday := false
	for _, rec := range records {
		if !rec.MatchesWeekday(visitDate.Weekday()) {
			continue
		}
		matchedWeekday = true
		if !hasTime || withinSlot(requested, rec.StartTime, rec.EndTime) {
			return availabilityFull
		}
	}
	if matchedWeekday {
		return availabilityRecurringOffHours
	}

	return availabilityAssumed
}

// minutesOfDay parses "HH:MM" into minutes since midnight.
func minutesOfDay(clock string) (int, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// withinSlot checks the requested time against a slot range, inclusive on
// both ends. A slot with an unparseable bound does not constrain that side.
func withinSlot(requested int, start, end string) bool {
	if s, ok := minutesOfDay(start); ok && requested < s {
		return false
	}
	if e, ok := minutesOfDay(end); ok && requested > e {
		return false
	}
	return true
}
