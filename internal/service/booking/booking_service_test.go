package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) CountActiveForGuide(ctx context.Context, guideID int64, from, to time.Time) (int, error) {
	args := m.Called(ctx, guideID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingRepository) ApplyTransition(ctx context.Context, update repository.TransitionUpdate) (*domain.Booking, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListDueReminder(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) ListActivity(ctx context.Context, bookingID int64) ([]domain.ActivityEntry, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).([]domain.ActivityEntry), args.Error(1)
}

type MockGuideRepository struct {
	mock.Mock
}

func (m *MockGuideRepository) ListActive(ctx context.Context) ([]domain.Guide, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Guide), args.Error(1)
}

func (m *MockGuideRepository) GetByID(ctx context.Context, id int64) (*domain.Guide, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Guide), args.Error(1)
}

func (m *MockGuideRepository) IncrementTourStats(ctx context.Context, id int64, earningsCents int64) error {
	args := m.Called(ctx, id, earningsCents)
	return args.Error(0)
}

func (m *MockGuideRepository) ApplyRating(ctx context.Context, id int64, rating int) error {
	args := m.Called(ctx, id, rating)
	return args.Error(0)
}

func (m *MockGuideRepository) Deactivate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var (
	staff   = Actor{ID: "op-1", Role: RoleCoordinator}
	guide42 = Actor{ID: "42", Role: RoleGuide}
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func newTestService(bookings *MockBookingRepository, guides *MockGuideRepository) *BookingService {
	return NewBookingService(bookings, guides, nil, logger.NewNop(), "")
}

func pendingBooking() *domain.Booking {
	return &domain.Booking{
		ID:           10,
		Reference:    "ref-10",
		VisitorEmail: "visitor@example.com",
		VisitDate:    time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		VisitTime:    "10:00",
		Status:       domain.BookingStatusPending,
		Version:      3,
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	service := newTestService(&MockBookingRepository{}, &MockGuideRepository{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateBookingInput
	}{
		{"missing email", CreateBookingInput{VisitDate: time.Now(), VisitTime: "10:00"}},
		{"missing date", CreateBookingInput{VisitorEmail: "v@example.com", VisitTime: "10:00"}},
		{"bad time", CreateBookingInput{VisitorEmail: "v@example.com", VisitDate: time.Now(), VisitTime: "later"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateBooking(ctx, tc.input)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateBooking_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	ctx := context.Background()

	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()

	b, err := service.CreateBooking(ctx, CreateBookingInput{
		VisitorName:      "Olga",
		VisitorEmail:     "olga@example.com",
		VisitDate:        time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		VisitTime:        "10:00",
		SelectedZones:    []string{"market"},
		TotalAmountCents: 12000,
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, b.Reference)
	mockBookings.AssertExpectations(t)
}

func TestStartTour_RequiresConfirmed(t *testing.T) {
	for _, status := range []domain.BookingStatus{
		domain.BookingStatusPending,
		domain.BookingStatusInProgress,
		domain.BookingStatusCompleted,
		domain.BookingStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			mockBookings := &MockBookingRepository{}
			service := newTestService(mockBookings, &MockGuideRepository{})
			ctx := context.Background()

			b := pendingBooking()
			b.Status = status
			mockBookings.On("GetByID", ctx, int64(10)).Return(b, nil).Once()

			_, err := service.StartTour(ctx, 10, staff)
			assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
			mockBookings.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
		})
	}
}

func TestStartTour_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusConfirmed
	current.AssignedGuideID = int64Ptr(42)

	updated := *current
	updated.Status = domain.BookingStatusInProgress
	updated.Version = current.Version + 1

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.MatchedBy(func(u repository.TransitionUpdate) bool {
		return u.Status == domain.BookingStatusInProgress &&
			u.ExpectedVersion != nil && *u.ExpectedVersion == current.Version
	})).Return(&updated, nil).Once()

	got, err := service.StartTour(ctx, 10, guide42)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusInProgress, got.Status)
	mockBookings.AssertExpectations(t)
}

func TestStartTour_GuideMayOnlyStartOwnTour(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusConfirmed
	current.AssignedGuideID = int64Ptr(7)
	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

	_, err := service.StartTour(ctx, 10, guide42)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCompleteTour_RequiresInProgress(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusConfirmed
	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

	_, err := service.CompleteTour(ctx, 10, nil, staff)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestCompleteTour_RatingValidation(t *testing.T) {
	service := newTestService(&MockBookingRepository{}, &MockGuideRepository{})
	ctx := context.Background()

	_, err := service.CompleteTour(ctx, 10, intPtr(0), staff)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.CompleteTour(ctx, 10, intPtr(6), staff)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCompleteTour_IncrementsGuideStatsOnce(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusInProgress
	current.AssignedGuideID = int64Ptr(42)
	current.TotalAmountCents = 15000

	updated := *current
	updated.Status = domain.BookingStatusCompleted
	updated.Version = current.Version + 1
	updated.VisitorRating = intPtr(5)

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.MatchedBy(func(u repository.TransitionUpdate) bool {
		return u.Status == domain.BookingStatusCompleted && u.VisitorRating != nil && *u.VisitorRating == 5
	})).Return(&updated, nil).Once()
	mockGuides.On("IncrementTourStats", ctx, int64(42), int64(15000)).Return(nil).Once()
	mockGuides.On("ApplyRating", ctx, int64(42), 5).Return(nil).Once()

	got, err := service.CompleteTour(ctx, 10, intPtr(5), guide42)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, got.Status)
	mockGuides.AssertExpectations(t)
	mockBookings.AssertExpectations(t)
}

func TestCompleteTour_NoGuideAssignedSkipsStats(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusInProgress

	updated := *current
	updated.Status = domain.BookingStatusCompleted

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.Anything).Return(&updated, nil).Once()

	_, err := service.CompleteTour(ctx, 10, nil, staff)
	assert.NoError(t, err)
	mockGuides.AssertNotCalled(t, "IncrementTourStats", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckIn_ForcesConfirmedFromPending(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	now := time.Date(2026, 9, 14, 9, 30, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	ctx := context.Background()

	current := pendingBooking()

	updated := *current
	updated.Status = domain.BookingStatusConfirmed
	updated.CheckInTime = &now
	updated.CheckInBy = staff.ID

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.MatchedBy(func(u repository.TransitionUpdate) bool {
		return u.Status == domain.BookingStatusConfirmed &&
			u.CheckInTime != nil && u.CheckInTime.Equal(now) &&
			u.CheckInBy == staff.ID
	})).Return(&updated, nil).Once()

	got, err := service.CheckIn(ctx, 10, staff)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
	assert.NotNil(t, got.CheckInTime)
	mockBookings.AssertExpectations(t)
}

func TestCheckIn_TerminalStatesStayTerminal(t *testing.T) {
	for _, status := range []domain.BookingStatus{domain.BookingStatusCompleted, domain.BookingStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			mockBookings := &MockBookingRepository{}
			service := newTestService(mockBookings, &MockGuideRepository{})
			ctx := context.Background()

			current := pendingBooking()
			current.Status = status
			mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

			_, err := service.CheckIn(ctx, 10, staff)
			assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
		})
	}
}

func TestCheckIn_StaffOnly(t *testing.T) {
	service := newTestService(&MockBookingRepository{}, &MockGuideRepository{})
	_, err := service.CheckIn(context.Background(), 10, Actor{ID: "v", Role: RoleVisitor})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCheckOut_FinalizesAndIncrementsOnce(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	now := time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	ctx := context.Background()

	checkIn := now.Add(-8 * time.Hour)
	current := pendingBooking()
	current.Status = domain.BookingStatusInProgress
	current.AssignedGuideID = int64Ptr(42)
	current.TotalAmountCents = 9000
	current.CheckInTime = &checkIn

	updated := *current
	updated.Status = domain.BookingStatusCompleted
	updated.CheckOutTime = &now

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.MatchedBy(func(u repository.TransitionUpdate) bool {
		return u.Status == domain.BookingStatusCompleted &&
			u.CheckOutTime != nil && u.CheckOutTime.Equal(now) &&
			u.CheckOutBy == staff.ID
	})).Return(&updated, nil).Once()
	mockGuides.On("IncrementTourStats", ctx, int64(42), int64(9000)).Return(nil).Once()

	got, err := service.CheckOut(ctx, 10, staff)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, got.Status)
	mockGuides.AssertExpectations(t)
}

func TestCheckOut_AlreadyCompletedDoesNotDoubleCount(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	ctx := context.Background()

	checkIn := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(8 * time.Hour)
	current := pendingBooking()
	current.Status = domain.BookingStatusCompleted
	current.AssignedGuideID = int64Ptr(42)
	current.CheckInTime = &checkIn
	current.CheckOutTime = &checkOut

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

	got, err := service.CheckOut(ctx, 10, staff)
	assert.NoError(t, err)
	assert.Equal(t, current, got)
	mockBookings.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
	mockGuides.AssertNotCalled(t, "IncrementTourStats", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckOut_CompletedViaCompleteStampsWithoutIncrement(t *testing.T) {
	// complete already ran the increment; a later check-out may stamp the
	// missing check-out time but must not count the tour again.
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	ctx := context.Background()

	checkIn := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	current := pendingBooking()
	current.Status = domain.BookingStatusCompleted
	current.AssignedGuideID = int64Ptr(42)
	current.CheckInTime = &checkIn

	updated := *current
	now := time.Now()
	updated.CheckOutTime = &now

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.Anything).Return(&updated, nil).Once()

	_, err := service.CheckOut(ctx, 10, staff)
	assert.NoError(t, err)
	mockGuides.AssertNotCalled(t, "IncrementTourStats", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckOut_RequiresCheckIn(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusInProgress
	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

	_, err := service.CheckOut(ctx, 10, staff)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestCancelBooking_VisitorOwnership(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockGuideRepository{})
	ctx := context.Background()

	current := pendingBooking()

	t.Run("own booking", func(t *testing.T) {
		updated := *current
		updated.Status = domain.BookingStatusCancelled
		mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
		mockBookings.On("ApplyTransition", ctx, mock.Anything).Return(&updated, nil).Once()

		got, err := service.CancelBooking(ctx, 10, Actor{ID: "v", Role: RoleVisitor, Email: "visitor@example.com"})
		assert.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	})

	t.Run("someone else's booking", func(t *testing.T) {
		mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

		_, err := service.CancelBooking(ctx, 10, Actor{ID: "v2", Role: RoleVisitor, Email: "other@example.com"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestCancelBooking_OnlyFromPendingOrConfirmed(t *testing.T) {
	for _, status := range []domain.BookingStatus{
		domain.BookingStatusInProgress,
		domain.BookingStatusCompleted,
		domain.BookingStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			mockBookings := &MockBookingRepository{}
			service := newTestService(mockBookings, &MockGuideRepository{})
			ctx := context.Background()

			current := pendingBooking()
			current.Status = status
			mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()

			_, err := service.CancelBooking(ctx, 10, staff)
			assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
		})
	}
}

func TestAssignGuide_StaffOnly(t *testing.T) {
	service := newTestService(&MockBookingRepository{}, &MockGuideRepository{})
	_, err := service.AssignGuide(context.Background(), 10, 42, nil, guide42)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAssignGuide_RejectsInactiveGuide(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	ctx := context.Background()

	mockBookings.On("GetByID", ctx, int64(10)).Return(pendingBooking(), nil).Once()
	deleted := time.Now()
	mockGuides.On("GetByID", ctx, int64(42)).Return(&domain.Guide{ID: 42, IsActive: false, DeletedAt: &deleted}, nil).Once()

	_, err := service.AssignGuide(ctx, 10, 42, nil, staff)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAssignGuide_StaleVersionSurfacesConflict(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGuides := &MockGuideRepository{}
	service := newTestService(mockBookings, mockGuides)
	ctx := context.Background()

	mockBookings.On("GetByID", ctx, int64(10)).Return(pendingBooking(), nil).Once()
	mockGuides.On("GetByID", ctx, int64(42)).Return(&domain.Guide{ID: 42, Name: "Vera", IsActive: true}, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.MatchedBy(func(u repository.TransitionUpdate) bool {
		return u.ExpectedVersion != nil && *u.ExpectedVersion == 2
	})).Return(nil, domain.ErrVersionConflict).Once()

	_, err := service.AssignGuide(ctx, 10, 42, int64Ptr(2), staff)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

// memBookingStore implements the conditional-write contract in memory so the
// concurrency property can be exercised with real goroutines.
type memBookingStore struct {
	MockBookingRepository
	mu      sync.Mutex
	booking domain.Booking
}

func (s *memBookingStore) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booking.ID != id {
		return nil, domain.ErrNotFound
	}
	b := s.booking
	return &b, nil
}

func (s *memBookingStore) ApplyTransition(ctx context.Context, update repository.TransitionUpdate) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booking.ID != update.BookingID {
		return nil, domain.ErrNotFound
	}
	if update.ExpectedVersion != nil && s.booking.Version != *update.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}
	s.booking.Status = update.Status
	s.booking.Version++
	b := s.booking
	return &b, nil
}

func TestConcurrentStaleWrites_ExactlyOneWins(t *testing.T) {
	store := &memBookingStore{booking: domain.Booking{
		ID:      10,
		Status:  domain.BookingStatusConfirmed,
		Version: 5,
	}}

	stale := int64(5)
	update := repository.TransitionUpdate{
		BookingID:       10,
		Status:          domain.BookingStatusInProgress,
		ExpectedVersion: &stale,
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ApplyTransition(context.Background(), update)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case err == domain.ErrVersionConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, int64(6), store.booking.Version)
}

func TestPublish_FailureNeverRollsBackTransition(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockProducer := &MockProducer{}
	service := NewBookingService(mockBookings, &MockGuideRepository{}, mockProducer, logger.NewNop(), "booking-events")
	ctx := context.Background()

	current := pendingBooking()
	current.Status = domain.BookingStatusConfirmed
	current.AssignedGuideID = int64Ptr(42)

	updated := *current
	updated.Status = domain.BookingStatusInProgress

	mockBookings.On("GetByID", ctx, int64(10)).Return(current, nil).Once()
	mockBookings.On("ApplyTransition", ctx, mock.Anything).Return(&updated, nil).Once()
	mockProducer.On("Publish", ctx, "booking-events", "ref-10", mock.Anything).Return(assert.AnError).Once()

	got, err := service.StartTour(ctx, 10, staff)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusInProgress, got.Status)
	mockProducer.AssertExpectations(t)
}
