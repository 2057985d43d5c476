package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/catintel/catintel/internal/coverage"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRefreshEstimates recalculates sales estimates for tracked ASINs.
	TaskRefreshEstimates = "tracking:refresh_estimates"
	// TaskRollupWarmup pre-populates the coverage rollup cache.
	TaskRollupWarmup = "tracking:rollup_warmup"
)

// RefreshEstimatesPayload selects the ASINs to refresh. An empty list
// refreshes every tracked ASIN.
type RefreshEstimatesPayload struct {
	ASINs        []string  `json:"asins,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewRefreshEstimatesTask constructs an Asynq task for estimate refreshes.
func NewRefreshEstimatesTask(payload RefreshEstimatesPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefreshEstimates, body, asynq.Queue(QueueDefault)), nil
}

// RollupWarmupPayload carries the catalog totals used for the warmed rollup.
type RollupWarmupPayload struct {
	Totals coverage.Totals `json:"totals"`
}

// NewRollupWarmupTask constructs an Asynq task for the rollup warmup.
func NewRollupWarmupTask(payload RollupWarmupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRollupWarmup, body, asynq.Queue(QueueDefault)), nil
}
