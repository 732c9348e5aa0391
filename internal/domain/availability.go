package domain

import "time"

// GuideAvailability is either a one-off date override (Date set) or a
// recurring weekly slot (IsRecurring with DayOfWeek set). Times are local
// clock times in "HH:MM" form.
type GuideAvailability struct {
	ID          int64
	GuideID     int64
	Date        *time.Time
	IsRecurring bool
	DayOfWeek   *int
	IsAvailable bool
	StartTime   string
	EndTime     string
	CreatedAt   time.Time
}

// MatchesDate reports whether this record is a one-off override for the
// given calendar date.
func (a *GuideAvailability) MatchesDate(date time.Time) bool {
	if a.IsRecurring || a.Date == nil {
		return false
	}
	y1, m1, d1 := a.Date.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// MatchesWeekday reports whether this record is a recurring slot for the
// given weekday.
func (a *GuideAvailability) MatchesWeekday(weekday time.Weekday) bool {
	return a.IsRecurring && a.DayOfWeek != nil && *a.DayOfWeek == int(weekday)
}
