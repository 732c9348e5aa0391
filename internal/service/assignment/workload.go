package assignment

import "time"

// Workload credits by active-booking count in the visit's week. A step
// function, monotonically non-increasing: guides with headroom rank higher,
// without any live conflict detection between concurrent requests.
const (
	workloadMax    = 25.0
	workloadHigh   = 20.0
	workloadMedium = 15.0
	workloadLow    = 10.0
	workloadMin    = 5.0
)

// weekWindow returns the Sunday-to-Saturday week containing the date.
func weekWindow(date time.Time) (time.Time, time.Time) {
	day := date.Truncate(0)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start = start.AddDate(0, 0, -int(start.Weekday()))
	end := start.AddDate(0, 0, 6)
	return start, end
}

func workloadScore(count int) float64 {
	switch {
	case count <= 0:
		return workloadMax
	case count <= 2:
		return workloadHigh
	case count <= 4:
		return workloadMedium
	case count <= 6:
		return workloadLow
	default:
		return workloadMin
	}
}
