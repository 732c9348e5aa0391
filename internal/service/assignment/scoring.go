package assignment

import "github.com/avolkoff/tourbooking/internal/domain"

// Component bounds: zone expertise 30, availability 25, workload 25,
// rating 20, for a total of at most 100.
const (
	zoneMax              = 30.0
	zoneNoZonesRequested = 15.0
	zoneGuideHasNone     = 5.0
	ratingMax            = 20.0
	ratingNeutral        = 10.0
)

// Breakdown holds the per-component scores for one guide. It is computed
// fresh on every request and never persisted.
type Breakdown struct {
	ZoneExpertise float64 `json:"zone_expertise"`
	Availability  float64 `json:"availability"`
	Workload      float64 `json:"workload"`
	Rating        float64 `json:"rating"`
}

func (b Breakdown) Total() float64 {
	return b.ZoneExpertise + b.Availability + b.Workload + b.Rating
}

// zoneExpertiseScore scales with the fraction of requested zones the guide
// covers. With nothing requested every guide gets a flat mid credit; a guide
// with no zone assignments at all gets a low flat credit.
func zoneExpertiseScore(guide *domain.Guide, requestedZones []string) float64 {
	if len(requestedZones) == 0 {
		return zoneNoZonesRequested
	}
	if len(guide.AssignedZones) == 0 {
		return zoneGuideHasNone
	}

	covered := 0
	for _, zone := range requestedZones {
		if guide.HasZone(zone) {
			covered++
		}
	}
	return float64(covered) / float64(len(requestedZones)) * zoneMax
}

// ratingScore maps the 0-5 rating onto the 20-point axis. Guides with no
// ratings yet get a neutral mid value rather than being buried at zero.
func ratingScore(guide *domain.Guide) float64 {
	if guide.TotalRatings == 0 {
		return ratingNeutral
	}
	return guide.Rating / 5 * ratingMax
}

// reasonsFor emits up to one human-readable line per component. The strings
// are advisory text for the operator UI and never feed back into ranking.
func reasonsFor(guide *domain.Guide, b Breakdown, requestedZones int) []string {
	reasons := make([]string, 0, 4)

	if requestedZones > 0 {
		switch {
		case b.ZoneExpertise >= zoneMax:
			reasons = append(reasons, "Expert in all selected zones")
		case b.ZoneExpertise >= zoneMax/2:
			reasons = append(reasons, "Covers most of the selected zones")
		case len(guide.AssignedZones) == 0:
			reasons = append(reasons, "No zone expertise on file")
		}
	}

	switch b.Availability {
	case availabilityFull:
		reasons = append(reasons, "Available at the requested time")
	case availabilityAssumed:
		reasons = append(reasons, "Likely available (no schedule on file)")
	case availabilityOverrideOffHours, availabilityRecurringOffHours:
		reasons = append(reasons, "Working that day but outside the requested hours")
	}

	switch {
	case b.Workload >= workloadMax:
		reasons = append(reasons, "Wide-open week")
	case b.Workload <= workloadLow:
		reasons = append(reasons, "Busy week - consider a backup")
	}

	switch {
	case guide.TotalRatings == 0:
		reasons = append(reasons, "New guide, no visitor ratings yet")
	case b.Rating >= 18:
		reasons = append(reasons, "Top-rated by visitors")
	}

	return reasons
}
