package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/catintel/catintel/internal/salesrank"
)

type rankEstimate struct {
	BSR                   int                  `json:"bsr"`
	EstimatedMonthlyUnits float64              `json:"estimated_monthly_units"`
	Method                salesrank.Method     `json:"estimation_method"`
	Confidence            salesrank.Confidence `json:"confidence"`
}

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "estimate <bsr>...",
		Short: "Estimate monthly unit sales for Best Seller Ranks",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			method = methodDefault(ctx, method)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			estimator, err := parseEstimator(method)
			if err != nil {
				return err
			}
			results := make([]rankEstimate, 0, len(args))
			for _, arg := range args {
				bsr, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid bsr %q: %w", arg, err)
				}
				units, err := estimator.Estimate(bsr)
				if err != nil {
					return err
				}
				results = append(results, rankEstimate{
					BSR:                   bsr,
					EstimatedMonthlyUnits: units,
					Method:                estimator.Tag(),
					Confidence:            salesrank.ConfidenceFor(bsr),
				})
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{strconv.Itoa(r.BSR), formatFloat(r.EstimatedMonthlyUnits), string(r.Confidence)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, string(estimator.Tag()),
				[]string{"BSR", "Units/Month", "Confidence"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "Estimation method: legacy or monotonic (default ESTIMATOR_METHOD or legacy)")
	return cmd
}

func newBoundariesCommand(ctx *commandContext) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "boundaries",
		Short: "Show the estimate on both sides of each rank regime edge",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			method = methodDefault(ctx, method)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			estimator, err := parseEstimator(method)
			if err != nil {
				return err
			}
			boundaries := estimator.Boundaries()
			if ctx.jsonOutput {
				return writeJSON(cmd, boundaries)
			}
			rows := make([][]string, 0, len(boundaries))
			for _, b := range boundaries {
				monotonic := "yes"
				if !b.Monotonic {
					monotonic = "NO"
				}
				rows = append(rows, []string{
					strconv.Itoa(b.Rank),
					formatFloat(b.Before),
					formatFloat(b.After),
					formatFloat(b.Jump),
					monotonic,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, string(estimator.Tag()),
				[]string{"Edge", "Units at edge-1", "Units at edge", "Jump", "Monotonic"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "Estimation method: legacy or monotonic")
	return cmd
}

func parseEstimator(method string) (salesrank.Estimator, error) {
	m, err := salesrank.ParseMethod(method)
	if err != nil {
		return salesrank.Estimator{}, err
	}
	return salesrank.NewEstimator(m), nil
}

// methodDefault falls back to ESTIMATOR_METHOD when no flag was given and
// the environment loads cleanly.
func methodDefault(ctx *commandContext, flag string) string {
	if flag != "" {
		return flag
	}
	if cfg, err := ctx.config(); err == nil {
		return string(cfg.Method())
	}
	return ""
}
