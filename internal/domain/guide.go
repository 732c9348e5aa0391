package domain

import "time"

// Guide is never hard-deleted: historical bookings keep referencing it,
// so removal only flips IsActive and stamps DeletedAt.
type Guide struct {
	ID                 int64
	Name               string
	Email              string
	AssignedZones      []string
	AvailableDays      []int // weekday indexes, 0=Sunday
	Rating             float64
	TotalRatings       int
	TotalTours         int
	CompletedTours     int
	TotalEarningsCents int64
	IsActive           bool
	DeletedAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WorksOn reports whether the weekday is allowed by the guide's default
// day set. An empty set means no default restriction.
func (g *Guide) WorksOn(weekday time.Weekday) bool {
	if len(g.AvailableDays) == 0 {
		return true
	}
	for _, d := range g.AvailableDays {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// HasZone reports whether the guide covers the given zone.
func (g *Guide) HasZone(zone string) bool {
	for _, z := range g.AssignedZones {
		if z == zone {
			return true
		}
	}
	return false
}
