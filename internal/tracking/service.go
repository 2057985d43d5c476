package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/internal/salesrank"
)

// ErrInvalidSnapshot wraps snapshot validation failures.
var ErrInvalidSnapshot = errors.New("tracking: invalid snapshot")

// Options tunes estimation.
type Options struct {
	Method         salesrank.Method
	VelocityWindow time.Duration
	ReviewRate     float64
	Logger         *slog.Logger
	Clock          func() time.Time
}

// Service coordinates the repository, the estimator and the rollup cache.
type Service struct {
	repo      Repository
	cache     *Cache
	estimator salesrank.Estimator
	window    time.Duration
	rate      float64
	logger    *slog.Logger
	clock     func() time.Time
	validate  *validator.Validate
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, opts Options) *Service {
	s := &Service{
		repo:      repo,
		cache:     cache,
		estimator: salesrank.NewEstimator(opts.Method),
		window:    opts.VelocityWindow,
		rate:      opts.ReviewRate,
		logger:    opts.Logger,
		clock:     opts.Clock,
		validate:  validator.New(),
	}
	if s.window <= 0 {
		s.window = salesrank.DefaultVelocityWindow
	}
	if s.rate <= 0 {
		s.rate = salesrank.DefaultReviewRate
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Estimator exposes the configured estimator.
func (s *Service) Estimator() salesrank.Estimator {
	return s.estimator
}

// Record validates and stores a snapshot, then invalidates cached rollups.
// Ranks must be positive; an unranked snapshot carries a nil rank.
func (s *Service) Record(ctx context.Context, snap Snapshot) error {
	_, err := s.RecordBatch(ctx, []Snapshot{snap})
	return err
}

// RecordBatch validates every snapshot before storing any of them. The batch
// is written in one transaction, so either all snapshots are recorded or
// none are.
func (s *Service) RecordBatch(ctx context.Context, snaps []Snapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	batch := make([]Snapshot, len(snaps))
	for i, snap := range snaps {
		normalised, err := s.normalise(snap)
		if err != nil {
			if len(snaps) > 1 {
				err = fmt.Errorf("snapshot %d: %w", i, err)
			}
			return 0, err
		}
		batch[i] = normalised
	}
	if err := s.repo.RecordSnapshots(ctx, batch); err != nil {
		return 0, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("tracking cache bump", slog.Any("error", err))
	}
	return len(batch), nil
}

func (s *Service) normalise(snap Snapshot) (Snapshot, error) {
	snap.ASIN = strings.TrimSpace(snap.ASIN)
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = s.clock()
	}
	if err := s.validate.Struct(snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.BSR != nil && *snap.BSR <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, salesrank.ErrOutOfDomain)
	}
	return snap, nil
}

// Estimate combines the latest rank estimate with review velocity for asin
// and persists the result.
func (s *Service) Estimate(ctx context.Context, asin string) (Estimate, error) {
	if _, err := s.repo.GetProduct(ctx, asin); err != nil {
		return Estimate{}, err
	}
	now := s.clock()

	var bsrEstimate *salesrank.SalesEstimate
	latest, err := s.repo.LatestRanked(ctx, []string{asin})
	if err != nil {
		return Estimate{}, err
	}
	if len(latest) > 0 {
		if est, ok := s.estimator.EstimateObservation(latest[0]); ok {
			bsrEstimate = &est
		}
	}

	var velocity *salesrank.Velocity
	history, err := s.repo.ReviewHistory(ctx, asin, now.Add(-s.window))
	if err != nil {
		return Estimate{}, err
	}
	if v, ok := salesrank.ReviewVelocity(history, s.window, s.rate, now); ok {
		velocity = &v
	}

	result := Estimate{Combined: salesrank.Combine(asin, bsrEstimate, velocity), CalculatedAt: now}
	if result.EstimatedMonthlyUnits != nil {
		if err := s.repo.SaveEstimate(ctx, storedFrom(result, s.estimator.Tag())); err != nil {
			return Estimate{}, err
		}
	}
	return result, nil
}

// RefreshAll re-estimates every tracked ASIN.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	asins, err := s.repo.ListASINs(ctx)
	if err != nil {
		return 0, err
	}
	return s.Refresh(ctx, asins)
}

// Refresh re-estimates the given ASINs. Failures for individual ASINs are
// logged and skipped; the first one is returned after the sweep.
func (s *Service) Refresh(ctx context.Context, asins []string) (int, error) {
	refreshed := 0
	var firstErr error
	for _, asin := range asins {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.Estimate(ctx, asin); err != nil {
			s.logger.Error("refresh estimate", slog.String("asin", asin), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("tracking cache bump", slog.Any("error", err))
	}
	return refreshed, firstErr
}

// Rollup reports volume, revenue and coverage for the selected ASINs using
// rank based estimates. Results are cached until the next recorded snapshot.
func (s *Service) Rollup(ctx context.Context, req RollupRequest) (coverage.Report, error) {
	key, err := s.cache.BuildKey(ctx, rollupKey(req))
	if err != nil {
		return coverage.Report{}, err
	}
	var report coverage.Report
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		observations, err := s.repo.LatestRanked(ctx, req.ASINs)
		if err != nil {
			return nil, err
		}
		tracked := make([]coverage.Tracked, 0, len(observations))
		for _, obs := range observations {
			est, ok := s.estimator.EstimateObservation(obs)
			if !ok {
				continue
			}
			tracked = append(tracked, coverage.Tracked{Estimate: est, Price: obs.Price, ReviewCount: obs.ReviewCount})
		}
		return coverage.Rollup(tracked, req.Totals), nil
	})
	if err != nil {
		return coverage.Report{}, err
	}
	return report, nil
}

// TopSellers returns the n tracked ASINs with the highest rank estimate.
func (s *Service) TopSellers(ctx context.Context, n int) ([]salesrank.SalesEstimate, error) {
	observations, err := s.repo.LatestRanked(ctx, nil)
	if err != nil {
		return nil, err
	}
	return salesrank.TopSellers(s.estimator.EstimateLatest(observations), n), nil
}

// Product returns the tracked product for asin.
func (s *Service) Product(ctx context.Context, asin string) (Product, error) {
	return s.repo.GetProduct(ctx, asin)
}

// LatestEstimate returns the most recently persisted estimate for asin.
func (s *Service) LatestEstimate(ctx context.Context, asin string) (StoredEstimate, error) {
	return s.repo.LatestEstimate(ctx, asin)
}
