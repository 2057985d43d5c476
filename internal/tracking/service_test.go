package tracking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/internal/salesrank"
)

var testNow = time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository, method salesrank.Method) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute), Options{
		Method: method,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  func() time.Time { return testNow },
	})
	return svc, mr
}

func snapshot(asin string, bsr int, reviews int, price float64, at time.Time) Snapshot {
	snap := Snapshot{Observation: salesrank.Observation{
		ASIN:        asin,
		ReviewCount: reviews,
		ObservedAt:  at,
	}}
	if bsr != 0 {
		snap.BSR = &bsr
	}
	if price != 0 {
		snap.Price = &price
	}
	return snap
}

func TestRecordRejectsInvalidSnapshots(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	err := svc.Record(ctx, snapshot("", 10, 0, 0, testNow))
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	bad := snapshot("B01", 0, 0, 0, testNow)
	zero := 0
	bad.BSR = &zero
	err = svc.Record(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	require.ErrorIs(t, err, salesrank.ErrOutOfDomain)

	err = svc.Record(ctx, snapshot("B01", 10, -5, 0, testNow))
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	require.Empty(t, repo.observations)
}

func TestRecordBatchIsAllOrNothing(t *testing.T) {
	repo := newMemRepo()
	svc, mr := newTestService(t, repo, "")
	ctx := context.Background()

	bad := snapshot("B02", 0, 0, 0, testNow)
	zero := 0
	bad.BSR = &zero
	n, err := svc.RecordBatch(ctx, []Snapshot{snapshot("B01", 5, 0, 0, testNow), bad})
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	require.ErrorIs(t, err, salesrank.ErrOutOfDomain)
	require.Contains(t, err.Error(), "snapshot 1")
	require.Zero(t, n)
	require.Empty(t, repo.observations)
	require.Empty(t, repo.products)
	require.False(t, mr.Exists(cacheVersionKey), "cache untouched when nothing is written")

	n, err = svc.RecordBatch(ctx, []Snapshot{snapshot("B01", 5, 0, 0, testNow), snapshot("B02", 9, 0, 0, testNow)})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, repo.observations, 2)
}

func TestOutOfOrderSnapshotKeepsNewestPrice(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 10, 0, 24.99, testNow)))
	require.NoError(t, svc.Record(ctx, snapshot("B01", 12, 0, 19.99, testNow.AddDate(0, 0, -3))))

	p, err := svc.Product(ctx, "B01")
	require.NoError(t, err)
	require.NotNil(t, p.CurrentPrice)
	require.Equal(t, 24.99, *p.CurrentPrice)
	require.Equal(t, testNow, p.LastTracked)
	require.Equal(t, testNow.AddDate(0, 0, -3), p.FirstTracked)
	require.Len(t, repo.observations, 2)
}

func TestRecordDefaultsObservedAt(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")

	require.NoError(t, svc.Record(context.Background(), snapshot(" B01 ", 10, 0, 0, time.Time{})))
	require.Len(t, repo.observations, 1)
	require.Equal(t, "B01", repo.observations[0].ASIN)
	require.Equal(t, testNow, repo.observations[0].ObservedAt)
}

func TestEstimateCombinesRankAndVelocity(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 50, 100, 20, testNow.AddDate(0, 0, -20))))
	require.NoError(t, svc.Record(ctx, snapshot("B01", 50, 130, 20, testNow.AddDate(0, 0, -1))))

	est, err := svc.Estimate(ctx, "B01")
	require.NoError(t, err)
	require.Equal(t, salesrank.CombinedBoth, est.Method)
	require.NotNil(t, est.BSR)
	require.InDelta(t, 2250, est.BSR.EstimatedMonthlyUnits, 1e-9)
	require.NotNil(t, est.Velocity)
	require.InDelta(t, 1.0, est.Velocity.ReviewsPerDay, 1e-9)
	require.InDelta(t, 1500, est.Velocity.EstimatedMonthlyUnits, 1e-9)
	require.NotNil(t, est.EstimatedMonthlyUnits)
	require.InDelta(t, 1875, *est.EstimatedMonthlyUnits, 1e-9)
	require.Equal(t, testNow, est.CalculatedAt)

	stored, err := svc.LatestEstimate(ctx, "B01")
	require.NoError(t, err)
	require.Equal(t, salesrank.MethodLegacy, stored.Method)
	require.Equal(t, salesrank.CombinedBoth, stored.Combination)
	require.Equal(t, salesrank.ConfidenceHigh, stored.Confidence)
	require.NotNil(t, stored.BSR)
	require.Equal(t, 50, *stored.BSR)
}

func TestEstimateUnrankedWithoutHistoryIsNotStored(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B02", 0, 5, 0, testNow.AddDate(0, 0, -1))))

	est, err := svc.Estimate(ctx, "B02")
	require.NoError(t, err)
	require.Equal(t, salesrank.CombinedNone, est.Method)
	require.Nil(t, est.EstimatedMonthlyUnits)
	require.Empty(t, repo.estimates)
}

func TestEstimateUnknownASIN(t *testing.T) {
	svc, _ := newTestService(t, newMemRepo(), "")
	_, err := svc.Estimate(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshAll(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, salesrank.MethodMonotonic)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 99, 0, 0, testNow.AddDate(0, 0, -2))))
	require.NoError(t, svc.Record(ctx, snapshot("B02", 5000, 0, 0, testNow.AddDate(0, 0, -2))))

	n, err := svc.RefreshAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, repo.estimates, 2)
	for _, est := range repo.estimates {
		require.Equal(t, salesrank.MethodMonotonic, est.Method)
	}
	// 99 sits below the 100 edge, so the monotonic floor of 2300 applies.
	require.InDelta(t, 2300, *repo.estimates[0].EstimatedMonthlyUnits, 1e-9)
}

func TestRefreshStopsOnCancelledContext(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	require.NoError(t, svc.Record(context.Background(), snapshot("B01", 10, 0, 0, testNow)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := svc.Refresh(ctx, []string{"B01"})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)
}

func TestRefreshReportsFirstFailure(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, snapshot("B01", 10, 0, 0, testNow)))

	n, err := svc.Refresh(ctx, []string{"missing", "B01"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, n)
}

func TestRollupCachesUntilNextSnapshot(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 50, 100, 20, testNow.AddDate(0, 0, -1))))
	require.NoError(t, svc.Record(ctx, snapshot("B02", 500, 50, 40, testNow.AddDate(0, 0, -1))))

	count := 20
	req := RollupRequest{Totals: coverage.Totals{CatalogCount: &count}}
	first, err := svc.Rollup(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 2, first.TrackedCount)
	require.Equal(t, 150, first.TrackedReviews)
	require.InDelta(t, 2250+1500, first.TotalEstimatedUnits, 1e-9)
	require.NotNil(t, first.CountCoverage)
	require.InDelta(t, 10.0, *first.CountCoverage, 1e-9)
	require.Nil(t, first.ReviewCoverage)
	calls := repo.latestCalls

	second, err := svc.Rollup(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, calls, repo.latestCalls)

	require.NoError(t, svc.Record(ctx, snapshot("B03", 5000, 10, 10, testNow)))
	third, err := svc.Rollup(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 3, third.TrackedCount)
	require.Greater(t, repo.latestCalls, calls)
}

func TestRollupSelectsASINs(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 50, 100, 20, testNow)))
	require.NoError(t, svc.Record(ctx, snapshot("B02", 500, 50, 40, testNow)))

	report, err := svc.Rollup(ctx, RollupRequest{ASINs: []string{"B02"}})
	require.NoError(t, err)
	require.Equal(t, 1, report.TrackedCount)
	require.InDelta(t, 1500, report.TotalEstimatedUnits, 1e-9)
}

func TestTopSellers(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 5000, 0, 0, testNow)))
	require.NoError(t, svc.Record(ctx, snapshot("B02", 10, 0, 0, testNow)))
	require.NoError(t, svc.Record(ctx, snapshot("B03", 0, 0, 0, testNow)))

	top, err := svc.TopSellers(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "B02", top[0].ASIN)
	require.Equal(t, "B01", top[1].ASIN)
}

func TestServiceWithoutRedis(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, Options{Clock: func() time.Time { return testNow }})
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, snapshot("B01", 50, 0, 0, testNow)))
	report, err := svc.Rollup(ctx, RollupRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, report.TrackedCount)
}
