package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/catintel/catintel/internal/coverage"
	jobmetrics "github.com/catintel/catintel/internal/jobs"
	"github.com/catintel/catintel/internal/tracking"
)

// RollupSource produces coverage rollups.
type RollupSource interface {
	Rollup(ctx context.Context, req tracking.RollupRequest) (coverage.Report, error)
}

// RollupWarmupJob pre-populates the cached rollup for the whole tracked set.
type RollupWarmupJob struct {
	Rollups RollupSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewRollupWarmupJob wires dependencies for the warmup handler.
func NewRollupWarmupJob(rollups RollupSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *RollupWarmupJob {
	return &RollupWarmupJob{Rollups: rollups, Logger: logger, Metrics: metrics, Timeout: 20 * time.Second}
}

// Handle processes rollup warmup tasks.
func (j *RollupWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Rollups == nil {
		return errors.New("rollup warmup: handler not configured")
	}
	var payload RollupWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskRollupWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskRollupWarmup))

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	report, err := j.Rollups.Rollup(ctx, tracking.RollupRequest{Totals: payload.Totals})
	if err != nil {
		resultErr = err
		logger.Error("warm rollup", slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed rollup warmup", slog.Int("tracked", report.TrackedCount))
	return resultErr
}
