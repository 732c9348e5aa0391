package assignment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/pkg/logger"
	"github.com/avolkoff/tourbooking/pkg/metrics"
)

type SuggestInput struct {
	VisitDate       time.Time `json:"visit_date"`
	VisitTime       string    `json:"visit_time"`
	SelectedZones   []string  `json:"selected_zones"`
	ExcludeGuideIDs []int64   `json:"exclude_guide_ids"`
}

// Suggestion is one ranked candidate. The breakdown and reasons travel with
// the guide so the operator can see why the ranking came out this way.
type Suggestion struct {
	Guide     domain.Guide `json:"guide"`
	Score     float64      `json:"score"`
	Breakdown Breakdown    `json:"breakdown"`
	Reasons   []string     `json:"reasons"`
}

type AssignmentUseCase interface {
	SuggestGuides(ctx context.Context, input SuggestInput) ([]Suggestion, error)
}

type Cache interface {
	GetGuides(ctx context.Context) ([]domain.Guide, error)
	SetGuides(ctx context.Context, guides []domain.Guide) error
}

type AssignmentService struct {
	guides       repository.GuideRepository
	availability repository.AvailabilityRepository
	bookings     repository.BookingRepository
	cache        Cache
	log          logger.Logger
	metrics      *metrics.Metrics
}

type AssignmentServiceOption func(*AssignmentService)

func WithCache(cache Cache) AssignmentServiceOption {
	return func(s *AssignmentService) {
		s.cache = cache
	}
}

func WithMetrics(m *metrics.Metrics) AssignmentServiceOption {
	return func(s *AssignmentService) {
		s.metrics = m
	}
}

func NewAssignmentService(
	guides repository.GuideRepository,
	availability repository.AvailabilityRepository,
	bookings repository.BookingRepository,
	log logger.Logger,
	opts ...AssignmentServiceOption,
) *AssignmentService {
	service := &AssignmentService{
		guides:       guides,
		availability: availability,
		bookings:     bookings,
		log:          log,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SuggestGuides scores every active guide against the request and returns
// them ranked. The result is advisory and read-only: nothing is reserved,
// and guide state may have moved by the time an operator acts on it.
func (s *AssignmentService) SuggestGuides(ctx context.Context, input SuggestInput) ([]Suggestion, error) {
	if input.VisitDate.IsZero() {
		return nil, fmt.Errorf("%w: visit date is required", domain.ErrValidation)
	}
	if input.VisitTime != "" {
		if _, ok := minutesOfDay(input.VisitTime); !ok {
			return nil, fmt.Errorf("%w: visit time must be HH:MM", domain.ErrValidation)
		}
	}

	started := time.Now()

	guides, err := s.listGuides(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[int64]struct{}, len(input.ExcludeGuideIDs))
	for _, id := range input.ExcludeGuideIDs {
		excluded[id] = struct{}{}
	}

	weekStart, weekEnd := weekWindow(input.VisitDate)

	suggestions := make([]Suggestion, 0, len(guides))
	for i := range guides {
		guide := guides[i]
		if _, skip := excluded[guide.ID]; skip {
			continue
		}

		records, err := s.availability.ListByGuide(ctx, guide.ID)
		if err != nil {
			return nil, fmt.Errorf("load availability for guide %d: %w", guide.ID, err)
		}

		active, err := s.bookings.CountActiveForGuide(ctx, guide.ID, weekStart, weekEnd)
		if err != nil {
			return nil, fmt.Errorf("count workload for guide %d: %w", guide.ID, err)
		}

		breakdown := Breakdown{
			ZoneExpertise: zoneExpertiseScore(&guide, input.SelectedZones),
			Availability:  resolveAvailability(&guide, records, input.VisitDate, input.VisitTime),
			Workload:      workloadScore(active),
			Rating:        ratingScore(&guide),
		}

		suggestions = append(suggestions, Suggestion{
			Guide:     guide,
			Score:     breakdown.Total(),
			Breakdown: breakdown,
			Reasons:   reasonsFor(&guide, breakdown, len(input.SelectedZones)),
		})
	}

	// Descending by score; equal scores fall back to ascending guide ID so
	// the ranking is reproducible regardless of store order.
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score == suggestions[j].Score {
			return suggestions[i].Guide.ID < suggestions[j].Guide.ID
		}
		return suggestions[i].Score > suggestions[j].Score
	})

	if s.metrics != nil {
		s.metrics.SuggestionsServed.Inc()
		s.metrics.ScoringTime.Observe(time.Since(started).Seconds())
	}
	s.log.Debug("ranked guide suggestions", "candidates", len(suggestions), "visit_date", input.VisitDate.Format("2006-01-02"))

	return suggestions, nil
}

func (s *AssignmentService) listGuides(ctx context.Context) ([]domain.Guide, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetGuides(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	guides, err := s.guides.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetGuides(ctx, guides); err != nil {
			s.log.Warn("failed to cache guide roster", "error", err)
		}
	}
	return guides, nil
}

var _ AssignmentUseCase = (*AssignmentService)(nil)
