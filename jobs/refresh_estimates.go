package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/catintel/catintel/internal/jobs"
	"github.com/catintel/catintel/internal/salesrank"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// EstimateRefresher recalculates stored sales estimates.
type EstimateRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
	Refresh(ctx context.Context, asins []string) (int, error)
	Estimator() salesrank.Estimator
}

// RefreshEstimatesJob re-estimates tracked ASINs on a schedule or on demand.
type RefreshEstimatesJob struct {
	Refresher EstimateRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewRefreshEstimatesJob wires dependencies for the refresh handler.
func NewRefreshEstimatesJob(refresher EstimateRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *RefreshEstimatesJob {
	return &RefreshEstimatesJob{
		Refresher: refresher,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes estimate refresh tasks.
func (j *RefreshEstimatesJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Refresher == nil {
		return errors.New("refresh estimates: handler not configured")
	}
	var payload RefreshEstimatesPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskRefreshEstimates)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("requested", len(payload.ASINs)))
	logger.Info("starting estimate refresh")
	start := j.now()

	var refreshed int
	if len(payload.ASINs) == 0 {
		refreshed, resultErr = j.Refresher.RefreshAll(ctx)
	} else {
		refreshed, resultErr = j.Refresher.Refresh(ctx, payload.ASINs)
	}
	j.metrics().AddRefreshed(string(j.Refresher.Estimator().Tag()), refreshed)
	if resultErr != nil {
		logger.Error("estimate refresh", slog.Int("refreshed", refreshed), slog.Any("error", resultErr))
		return resultErr
	}

	logger.Info("completed estimate refresh", slog.Int("refreshed", refreshed), slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *RefreshEstimatesJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRefreshEstimates))
	}
	return slog.Default().With(slog.String("job", TaskRefreshEstimates))
}

func (j *RefreshEstimatesJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RefreshEstimatesJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
