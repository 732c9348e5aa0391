package booking

import (
	"context"
	"sync"
	"time"

	"github.com/avolkoff/tourbooking/internal/kafka"
	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/pkg/logger"
	"github.com/avolkoff/tourbooking/pkg/metrics"
)

type ReminderLock interface {
	AcquireReminderLock(ctx context.Context, ttl time.Duration) (bool, error)
}

// ReminderGate scans for bookings whose visit starts in the reminder window
// and sends each at most one reminder. The debounce timestamp belongs to the
// gate instance, not the package, and the clock is injected so tests can
// drive it. Losing the timestamp (restart) only costs an extra scan.
type ReminderGate struct {
	bookings repository.BookingRepository
	producer Producer
	lock     ReminderLock
	log      logger.Logger
	metrics  *metrics.Metrics
	topic    string
	debounce time.Duration
	lead     time.Duration
	window   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastScan time.Time
}

type ReminderGateOption func(*ReminderGate)

func WithReminderLock(lock ReminderLock) ReminderGateOption {
	return func(g *ReminderGate) {
		g.lock = lock
	}
}

func WithReminderMetrics(m *metrics.Metrics) ReminderGateOption {
	return func(g *ReminderGate) {
		g.metrics = m
	}
}

func WithReminderClock(now func() time.Time) ReminderGateOption {
	return func(g *ReminderGate) {
		g.now = now
	}
}

func NewReminderGate(
	bookings repository.BookingRepository,
	producer Producer,
	log logger.Logger,
	topic string,
	debounce, lead, window time.Duration,
	opts ...ReminderGateOption,
) *ReminderGate {
	gate := &ReminderGate{
		bookings: bookings,
		producer: producer,
		log:      log,
		topic:    topic,
		debounce: debounce,
		lead:     lead,
		window:   window,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate
}

// MaybeTrigger runs a scan in the background unless one ran within the
// debounce interval. It never blocks the caller.
func (g *ReminderGate) MaybeTrigger(ctx context.Context) {
	g.mu.Lock()
	if g.now().Sub(g.lastScan) < g.debounce {
		g.mu.Unlock()
		return
	}
	g.lastScan = g.now()
	g.mu.Unlock()

	go func() {
		if err := g.Sweep(ctx); err != nil {
			g.log.Warn("reminder sweep failed", "error", err)
		}
	}()
}

// Sweep scans the window synchronously. The worker calls this on a ticker;
// MaybeTrigger calls it in a goroutine. One booking failing never aborts
// the rest of the batch.
func (g *ReminderGate) Sweep(ctx context.Context) error {
	if g.lock != nil {
		ok, err := g.lock.AcquireReminderLock(ctx, g.debounce)
		if err != nil {
			g.log.Warn("reminder lock unavailable, proceeding without it", "error", err)
		} else if !ok {
			return nil
		}
	}

	from := g.now().Add(g.lead)
	to := from.Add(g.window)

	due, err := g.bookings.ListDueReminder(ctx, from, to)
	if err != nil {
		return err
	}

	for _, b := range due {
		claimed, err := g.bookings.MarkReminderSent(ctx, b.ID, g.now())
		if err != nil {
			g.log.Error("failed to claim reminder", "booking_id", b.ID, "error", err)
			if g.metrics != nil {
				g.metrics.ReminderFailures.Inc()
			}
			continue
		}
		if !claimed {
			continue
		}

		event := kafka.BookingEvent{
			Type:         "booking_reminder",
			BookingID:    b.ID,
			Reference:    b.Reference,
			VisitorEmail: b.VisitorEmail,
			GuideID:      b.AssignedGuideID,
			Status:       string(b.Status),
			VisitDate:    b.VisitDate,
			VisitTime:    b.VisitTime,
		}
		if err := g.producer.Publish(ctx, g.topic, b.Reference, event); err != nil {
			g.log.Error("failed to publish reminder", "booking_id", b.ID, "error", err)
			if g.metrics != nil {
				g.metrics.ReminderFailures.Inc()
			}
			continue
		}
		if g.metrics != nil {
			g.metrics.RemindersSent.Inc()
		}
	}

	return nil
}

var _ ReminderTrigger = (*ReminderGate)(nil)
