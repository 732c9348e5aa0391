package email

import (
	"context"
	"fmt"

	"github.com/avolkoff/tourbooking/internal/kafka"
	"github.com/avolkoff/tourbooking/pkg/logger"
)

// Sender delivers notification emails for booking events. Delivery transport
// is intentionally thin; the worker treats any returned error as a failure
// for that one event only.
type Sender struct {
	log logger.Logger
}

func NewSender(log logger.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.VisitorEmail == "" {
		return fmt.Errorf("event %s for booking %s has no recipient", event.Type, event.Reference)
	}

	subject := subjectFor(event)
	s.log.Info("sending email",
		"to", event.VisitorEmail,
		"subject", subject,
		"booking", event.Reference,
		"visit_date", event.VisitDate.Format("2006-01-02"),
		"visit_time", event.VisitTime,
	)
	return nil
}

func subjectFor(event kafka.BookingEvent) string {
	switch event.Type {
	case "booking_created":
		return "We received your booking"
	case "booking_assigned":
		return "A guide has been assigned to your visit"
	case "booking_started":
		return "Your tour has started"
	case "booking_completed":
		return "Thanks for visiting - tell us how it went"
	case "booking_cancelled":
		return "Your booking has been cancelled"
	case "booking_checked_in":
		return "You are checked in"
	case "booking_checked_out":
		return "You are checked out"
	case "booking_reminder":
		return "Your visit is tomorrow"
	default:
		return fmt.Sprintf("Update on your booking %s", event.Reference)
	}
}
