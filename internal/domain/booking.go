package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave the status.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Booking struct {
	ID               int64
	Reference        string
	VisitorName      string
	VisitorEmail     string
	VisitDate        time.Time
	VisitTime        string
	SelectedZones    []string
	Status           BookingStatus
	PaymentStatus    PaymentStatus
	AssignedGuideID  *int64
	TotalAmountCents int64
	CheckInTime      *time.Time
	CheckInBy        string
	CheckOutTime     *time.Time
	CheckOutBy       string
	VisitorRating    *int
	Version          int64
	ReminderSentAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VisitStart combines the calendar date and the "HH:MM" visit time.
func (b *Booking) VisitStart() time.Time {
	t, err := time.Parse("15:04", b.VisitTime)
	if err != nil {
		return b.VisitDate
	}
	return time.Date(b.VisitDate.Year(), b.VisitDate.Month(), b.VisitDate.Day(), t.Hour(), t.Minute(), 0, 0, b.VisitDate.Location())
}

// ActivityEntry is an append-only record of a status change. Entries are
// never updated or deleted once written.
type ActivityEntry struct {
	ID          int64
	BookingID   int64
	OldStatus   BookingStatus
	NewStatus   BookingStatus
	Actor       string
	Description string
	CreatedAt   time.Time
}
