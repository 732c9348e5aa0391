package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/avolkoff/tourbooking/internal/kafka"
	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/pkg/logger"
	"github.com/avolkoff/tourbooking/pkg/metrics"
	"github.com/google/uuid"
)

// Actor identifies who is driving a transition. Role gating that depends on
// booking state (own tour, own booking) lives here rather than in the HTTP
// middleware.
type Actor struct {
	ID    string
	Role  string
	Email string
}

const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleGuide       = "guide"
	RoleVisitor     = "visitor"
)

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleCoordinator
}

type CreateBookingInput struct {
	VisitorName      string    `json:"visitor_name"`
	VisitorEmail     string    `json:"visitor_email"`
	VisitDate        time.Time `json:"visit_date"`
	VisitTime        string    `json:"visit_time"`
	SelectedZones    []string  `json:"selected_zones"`
	TotalAmountCents int64     `json:"total_amount_cents"`
}

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	AssignGuide(ctx context.Context, id, guideID int64, expectedVersion *int64, actor Actor) (*domain.Booking, error)
	StartTour(ctx context.Context, id int64, actor Actor) (*domain.Booking, error)
	CompleteTour(ctx context.Context, id int64, rating *int, actor Actor) (*domain.Booking, error)
	CheckIn(ctx context.Context, id int64, actor Actor) (*domain.Booking, error)
	CheckOut(ctx context.Context, id int64, actor Actor) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id int64, actor Actor) (*domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ReminderTrigger interface {
	MaybeTrigger(ctx context.Context)
}

type BookingService struct {
	bookings           repository.BookingRepository
	guides             repository.GuideRepository
	producer           Producer
	reminders          ReminderTrigger
	log                logger.Logger
	metrics            *metrics.Metrics
	eventsTopic        string
	notificationsTopic string
	now                func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithReminderTrigger(gate ReminderTrigger) BookingServiceOption {
	return func(s *BookingService) {
		s.reminders = gate
	}
}

func WithMetrics(m *metrics.Metrics) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	guides repository.GuideRepository,
	producer Producer,
	log logger.Logger,
	eventsTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:    bookings,
		guides:      guides,
		producer:    producer,
		log:         log,
		eventsTopic: eventsTopic,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.VisitorEmail == "" {
		return nil, fmt.Errorf("%w: visitor email is required", domain.ErrValidation)
	}
	if input.VisitDate.IsZero() {
		return nil, fmt.Errorf("%w: visit date is required", domain.ErrValidation)
	}
	if _, err := time.Parse("15:04", input.VisitTime); err != nil {
		return nil, fmt.Errorf("%w: visit time must be HH:MM", domain.ErrValidation)
	}

	booking := &domain.Booking{
		Reference:        uuid.NewString(),
		VisitorName:      input.VisitorName,
		VisitorEmail:     input.VisitorEmail,
		VisitDate:        input.VisitDate,
		VisitTime:        input.VisitTime,
		SelectedZones:    input.SelectedZones,
		TotalAmountCents: input.TotalAmountCents,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_created", booking)
	s.nudgeReminders()
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// AssignGuide records the operator's pick from the suggestion list. The
// write is guarded by the version the operator read alongside the
// suggestions, so a pick landing on a booking that moved in the meantime
// surfaces as a conflict instead of silently overwriting.
func (s *BookingService) AssignGuide(ctx context.Context, id, guideID int64, expectedVersion *int64, actor Actor) (*domain.Booking, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may assign guides", domain.ErrForbidden)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusPending && current.Status != domain.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: cannot assign a guide to a %s booking", domain.ErrPreconditionFailed, current.Status)
	}

	guide, err := s.guides.GetByID(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("guide %d: %w", guideID, err)
	}
	if !guide.IsActive || guide.DeletedAt != nil {
		return nil, fmt.Errorf("%w: guide %d is not active", domain.ErrValidation, guideID)
	}

	if expectedVersion == nil {
		expectedVersion = &current.Version
	}

	updated, err := s.transition(ctx, repository.TransitionUpdate{
		BookingID:       id,
		Status:          domain.BookingStatusConfirmed,
		AssignedGuideID: &guideID,
		ExpectedVersion: expectedVersion,
		Actor:           actor.ID,
		Description:     fmt.Sprintf("guide %s assigned", guide.Name),
	}, "assign")
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_assigned", updated)
	return updated, nil
}

// StartTour is legal only from confirmed.
func (s *BookingService) StartTour(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnTour(current, actor); err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: cannot start a %s booking", domain.ErrPreconditionFailed, current.Status)
	}

	updated, err := s.transition(ctx, repository.TransitionUpdate{
		BookingID:       id,
		Status:          domain.BookingStatusInProgress,
		ExpectedVersion: &current.Version,
		Actor:           actor.ID,
		Description:     "tour started",
	}, "start")
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_started", updated)
	return updated, nil
}

// CompleteTour is legal only from in_progress. Guide stats and the optional
// rating fold happen through the shared finalize path.
func (s *BookingService) CompleteTour(ctx context.Context, id int64, rating *int, actor Actor) (*domain.Booking, error) {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnTour(current, actor); err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusInProgress {
		return nil, fmt.Errorf("%w: cannot complete a %s booking", domain.ErrPreconditionFailed, current.Status)
	}

	updated, err := s.finalize(ctx, current, repository.TransitionUpdate{
		BookingID:       id,
		ExpectedVersion: &current.Version,
		Actor:           actor.ID,
		Description:     "tour completed",
	}, rating, "complete")
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_completed", updated)
	return updated, nil
}

// CheckIn forces the booking to confirmed and stamps the check-in, a
// deliberate convenience for walk-ins. Terminal states stay terminal.
func (s *BookingService) CheckIn(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may check in visitors", domain.ErrForbidden)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot check in a %s booking", domain.ErrPreconditionFailed, current.Status)
	}

	at := s.now()
	updated, err := s.transition(ctx, repository.TransitionUpdate{
		BookingID:       id,
		Status:          domain.BookingStatusConfirmed,
		CheckInTime:     &at,
		CheckInBy:       actor.ID,
		ExpectedVersion: &current.Version,
		Actor:           actor.ID,
		Description:     "visitor checked in",
	}, "check_in")
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_checked_in", updated)
	return updated, nil
}

// CheckOut stamps the check-out and finalizes the booking through the same
// path as CompleteTour, so the guide stat increment can never run twice.
func (s *BookingService) CheckOut(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may check out visitors", domain.ErrForbidden)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled {
		return nil, fmt.Errorf("%w: cannot check out a cancelled booking", domain.ErrPreconditionFailed)
	}
	if current.CheckInTime == nil {
		return nil, fmt.Errorf("%w: booking was never checked in", domain.ErrPreconditionFailed)
	}
	if current.Status == domain.BookingStatusCompleted && current.CheckOutTime != nil {
		return current, nil
	}

	at := s.now()
	updated, err := s.finalize(ctx, current, repository.TransitionUpdate{
		BookingID:       id,
		CheckOutTime:    &at,
		CheckOutBy:      actor.ID,
		ExpectedVersion: &current.Version,
		Actor:           actor.ID,
		Description:     "visitor checked out",
	}, nil, "check_out")
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_checked_out", updated)
	return updated, nil
}

// CancelBooking is legal from pending or confirmed. Visitors may only cancel
// their own booking.
func (s *BookingService) CancelBooking(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == RoleVisitor && actor.Email != current.VisitorEmail {
		return nil, fmt.Errorf("%w: visitors may only cancel their own booking", domain.ErrForbidden)
	}
	if !actor.IsStaff() && actor.Role != RoleVisitor {
		return nil, fmt.Errorf("%w: role %q may not cancel bookings", domain.ErrForbidden, actor.Role)
	}
	if current.Status != domain.BookingStatusPending && current.Status != domain.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: cannot cancel a %s booking", domain.ErrPreconditionFailed, current.Status)
	}

	updated, err := s.transition(ctx, repository.TransitionUpdate{
		BookingID:       id,
		Status:          domain.BookingStatusCancelled,
		ExpectedVersion: &current.Version,
		Actor:           actor.ID,
		Description:     "booking cancelled",
	}, "cancel")
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_cancelled", updated)
	return updated, nil
}

// finalize moves the booking into completed and applies the guide-side
// effects exactly once: the increment only runs on the transition into
// completed, never when the booking already was completed.
func (s *BookingService) finalize(ctx context.Context, current *domain.Booking, update repository.TransitionUpdate, rating *int, action string) (*domain.Booking, error) {
	update.Status = domain.BookingStatusCompleted
	update.VisitorRating = rating

	updated, err := s.transition(ctx, update, action)
	if err != nil {
		return nil, err
	}

	if current.Status != domain.BookingStatusCompleted && updated.AssignedGuideID != nil {
		guideID := *updated.AssignedGuideID
		if err := s.guides.IncrementTourStats(ctx, guideID, updated.TotalAmountCents); err != nil {
			s.log.Error("failed to increment guide stats", "guide_id", guideID, "booking_id", updated.ID, "error", err)
		}
		if rating != nil {
			if err := s.guides.ApplyRating(ctx, guideID, *rating); err != nil {
				s.log.Error("failed to apply guide rating", "guide_id", guideID, "booking_id", updated.ID, "error", err)
			}
		}
	}

	return updated, nil
}

func (s *BookingService) transition(ctx context.Context, update repository.TransitionUpdate, action string) (*domain.Booking, error) {
	updated, err := s.bookings.ApplyTransition(ctx, update)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) && s.metrics != nil {
			s.metrics.VersionConflicts.Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(action).Inc()
	}
	s.nudgeReminders()
	return updated, nil
}

func (s *BookingService) requireOwnTour(booking *domain.Booking, actor Actor) error {
	if actor.IsStaff() {
		return nil
	}
	if actor.Role != RoleGuide {
		return fmt.Errorf("%w: role %q may not run tours", domain.ErrForbidden, actor.Role)
	}
	if booking.AssignedGuideID == nil || actor.ID != strconv.FormatInt(*booking.AssignedGuideID, 10) {
		return fmt.Errorf("%w: guides may only run their own tours", domain.ErrForbidden)
	}
	return nil
}

// publish mirrors every event to the notifications topic when configured.
// Publish failures never roll back the transition that triggered them.
func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:         eventType,
		BookingID:    booking.ID,
		Reference:    booking.Reference,
		VisitorEmail: booking.VisitorEmail,
		GuideID:      booking.AssignedGuideID,
		Status:       string(booking.Status),
		VisitDate:    booking.VisitDate,
		VisitTime:    booking.VisitTime,
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.Reference, event); err != nil {
		s.log.Warn("failed to publish booking event", "type", eventType, "booking", booking.Reference, "error", err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.Reference, event); err != nil {
			s.log.Warn("failed to publish notification event", "type", eventType, "booking", booking.Reference, "error", err)
		}
	}
}

// nudgeReminders fires the reminder gate off the request path. The gate does
// its own debouncing, so calling it on every write is cheap.
func (s *BookingService) nudgeReminders() {
	if s.reminders != nil {
		s.reminders.MaybeTrigger(context.Background())
	}
}

var _ BookingUseCase = (*BookingService)(nil)
