package truthscore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/nomadstay/internal/metrics"
)

// ContributionSource loads the verified contributions of a hotel
type ContributionSource interface {
	ListVerifiedContributions(ctx context.Context, hotelID uuid.UUID) ([]Contribution, error)
}

// AggregateSink replaces a hotel's stored aggregate
type AggregateSink interface {
	SaveHotelAggregate(ctx context.Context, agg HotelAggregate) error
}

// Invalidator drops cached copies of a hotel record
type Invalidator interface {
	InvalidateHotel(ctx context.Context, hotelID uuid.UUID)
}

// Service recomputes and persists hotel aggregates
type Service struct {
	src    ContributionSource
	sink   AggregateSink
	cache  Invalidator
	logger zerolog.Logger
}

// NewService wires a recompute service. cache may be nil.
func NewService(src ContributionSource, sink AggregateSink, cache Invalidator, logger zerolog.Logger) *Service {
	return &Service{
		src:    src,
		sink:   sink,
		cache:  cache,
		logger: logger.With().Str("component", "truthscore").Logger(),
	}
}

// Recompute rebuilds the aggregate of hotelID from all of its verified
// contributions and replaces the stored snapshot. On error the previous
// snapshot is left untouched.
func (s *Service) Recompute(ctx context.Context, hotelID uuid.UUID) (agg HotelAggregate, err error) {
	start := time.Now()
	defer func() { metrics.RecordRecompute(start, err) }()

	contributions, err := s.src.ListVerifiedContributions(ctx, hotelID)
	if err != nil {
		return HotelAggregate{}, fmt.Errorf("list contributions for hotel %s: %w", hotelID, err)
	}

	agg = Compute(hotelID, contributions)

	if err = s.sink.SaveHotelAggregate(ctx, agg); err != nil {
		return HotelAggregate{}, fmt.Errorf("save aggregate for hotel %s: %w", hotelID, err)
	}
	if s.cache != nil {
		s.cache.InvalidateHotel(ctx, hotelID)
	}

	s.logger.Info().
		Str("hotel_id", hotelID.String()).
		Int("contributions", agg.ContributionCount).
		Float64("truth_score", agg.TruthScore).
		Float64("confidence", agg.TruthConfidence).
		Dur("duration", time.Since(start)).
		Msg("truth score recomputed")
	return agg, nil
}
