package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/jobs"
)

// jobsCLI wraps manual management helpers for asynq jobs.
type jobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

func newJobsCLI(redisAddr string) (*jobsCLI, error) {
	opts, err := jobs.RedisClientOpt(redisAddr)
	if err != nil {
		return nil, err
	}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &jobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

func (c *jobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// trigger enqueues a supported job by short name.
func (c *jobsCLI) trigger(ctx context.Context, name string, asins []string, totals coverage.Totals) (*asynq.TaskInfo, error) {
	switch name {
	case "refresh", jobs.TaskRefreshEstimates:
		return c.client.EnqueueRefresh(ctx, jobs.RefreshEstimatesPayload{ASINs: asins})
	case "warmup", jobs.TaskRollupWarmup:
		return c.client.EnqueueRollupWarmup(ctx, jobs.RollupWarmupPayload{Totals: totals})
	default:
		return nil, fmt.Errorf("jobs: unsupported job %q (want refresh or warmup)", name)
	}
}

type queueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
	Processed int    `json:"processed"`
}

func (c *jobsCLI) stats() (queueStats, error) {
	if c == nil || c.inspector == nil {
		return queueStats{}, errors.New("jobs: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return queueStats{}, err
	}
	stats := queueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
		stats.Processed = info.Processed
	}
	return stats, nil
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var (
		asins        []string
		catalogCount int
	)
	triggerCmd := &cobra.Command{
		Use:       "trigger <refresh|warmup>",
		Short:     "Enqueue a background job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"refresh", "warmup"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := jobsFromConfig(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()

			var totals coverage.Totals
			if cmd.Flags().Changed("catalog-count") {
				totals.CatalogCount = &catalogCount
			}
			info, err := cli.trigger(cmd.Context(), args[0], asins, totals)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	triggerCmd.Flags().StringSliceVar(&asins, "asin", nil, "Refresh only these ASINs")
	triggerCmd.Flags().IntVar(&catalogCount, "catalog-count", 0, "Catalog size used by the warmed rollup")
	jobsCmd.AddCommand(triggerCmd)

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := jobsFromConfig(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()

			stats, err := cli.stats()
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, "queue "+stats.Queue,
				[]string{"Pending", "Active", "Scheduled", "Retry", "Failed", "Processed"},
				[][]string{{
					strconv.Itoa(stats.Pending),
					strconv.Itoa(stats.Active),
					strconv.Itoa(stats.Scheduled),
					strconv.Itoa(stats.Retry),
					strconv.Itoa(stats.Failed),
					strconv.Itoa(stats.Processed),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}))
			return nil
		},
	})

	return jobsCmd
}

func jobsFromConfig(ctx *commandContext) (*jobsCLI, error) {
	cfg, err := ctx.config()
	if err != nil {
		return nil, err
	}
	return newJobsCLI(cfg.RedisAddr)
}
