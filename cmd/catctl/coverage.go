package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/internal/platform/db"
	"github.com/catintel/catintel/internal/salesrank"
	"github.com/catintel/catintel/internal/tracking"
)

func newCoverageCommand(ctx *commandContext) *cobra.Command {
	var (
		asins          []string
		observations   string
		method         string
		catalogCount   int
		catalogReviews int
		catalogUnits   float64
	)

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Roll tracked estimates up into volume, revenue and catalog coverage",
		Long: "Reads the latest ranked observation per ASIN from the tracking database, or from a JSON " +
			"file of observations with --observations, and compares the tracked set with catalog totals.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			method = methodDefault(ctx, method)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			estimator, err := parseEstimator(method)
			if err != nil {
				return err
			}
			totals := coverage.Totals{}
			if cmd.Flags().Changed("catalog-count") {
				totals.CatalogCount = &catalogCount
			}
			if cmd.Flags().Changed("catalog-reviews") {
				totals.CatalogReviews = &catalogReviews
			}
			if cmd.Flags().Changed("catalog-units") {
				totals.CatalogUnits = &catalogUnits
			}

			var report coverage.Report
			if observations != "" {
				report, err = offlineRollup(cmd, estimator, observations, asins, totals)
			} else {
				report, err = storedRollup(cmd, ctx, estimator, asins, totals)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, report)
			}
			printCoverage(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&asins, "asin", nil, "Restrict the rollup to these ASINs")
	cmd.Flags().StringVar(&observations, "observations", "", "JSON file of observations to use instead of the database (\"-\" for stdin)")
	cmd.Flags().StringVarP(&method, "method", "m", "", "Estimation method: legacy or monotonic")
	cmd.Flags().IntVar(&catalogCount, "catalog-count", 0, "Number of products in the full catalog")
	cmd.Flags().IntVar(&catalogReviews, "catalog-reviews", 0, "Review count of the full catalog")
	cmd.Flags().Float64Var(&catalogUnits, "catalog-units", 0, "Estimated monthly units of the full catalog")
	return cmd
}

func offlineRollup(cmd *cobra.Command, estimator salesrank.Estimator, path string, asins []string, totals coverage.Totals) (coverage.Report, error) {
	in, closeFn, err := openInput(cmd, path)
	if err != nil {
		return coverage.Report{}, err
	}
	defer closeFn()

	var observations []salesrank.Observation
	if err := json.NewDecoder(in).Decode(&observations); err != nil {
		return coverage.Report{}, fmt.Errorf("decode observations: %w", err)
	}
	selected := observations
	if len(asins) > 0 {
		want := make(map[string]struct{}, len(asins))
		for _, asin := range asins {
			want[asin] = struct{}{}
		}
		selected = selected[:0:0]
		for _, obs := range observations {
			if _, ok := want[obs.ASIN]; ok {
				selected = append(selected, obs)
			}
		}
	}

	latest := salesrank.Latest(selected)
	tracked := make([]coverage.Tracked, 0, len(latest))
	for _, est := range estimator.EstimateLatest(selected) {
		obs := latest[est.ASIN]
		tracked = append(tracked, coverage.Tracked{Estimate: est, Price: obs.Price, ReviewCount: obs.ReviewCount})
	}
	return coverage.Rollup(tracked, totals), nil
}

func storedRollup(cmd *cobra.Command, ctx *commandContext, estimator salesrank.Estimator, asins []string, totals coverage.Totals) (coverage.Report, error) {
	cfg, err := ctx.config()
	if err != nil {
		return coverage.Report{}, err
	}
	pool, err := db.New(cmd.Context(), cfg.PGDSN)
	if err != nil {
		return coverage.Report{}, err
	}
	defer pool.Close()

	service := tracking.NewService(tracking.NewPGRepository(pool), nil, tracking.Options{
		Method: estimator.Tag(),
		Logger: ctx.logger(cmd.ErrOrStderr()),
	})
	return service.Rollup(cmd.Context(), tracking.RollupRequest{ASINs: asins, Totals: totals})
}

func printCoverage(out io.Writer, report coverage.Report) {
	summary := [][]string{
		{"Tracked products", strconv.Itoa(report.TrackedCount)},
		{"Tracked reviews", strconv.Itoa(report.TrackedReviews)},
		{"Est. monthly units", formatFloat(report.TotalEstimatedUnits)},
		{"Average price", formatOptional(report.AveragePrice)},
		{"Est. monthly revenue", formatOptional(report.EstimatedMonthlyRevenue)},
		{"Count coverage %", formatOptional(report.CountCoverage)},
		{"Review coverage %", formatOptional(report.ReviewCoverage)},
		{"Unit coverage %", formatOptional(report.UnitCoverage)},
	}
	fmt.Fprintln(out, renderTable(out, "coverage", []string{"Metric", "Value"}, summary,
		[]columnAlignment{alignLeft, alignRight}))

	if len(report.Tiers) == 0 {
		return
	}
	rows := make([][]string, 0, len(report.Tiers))
	for _, t := range report.Tiers {
		rows = append(rows, []string{t.Tier, strconv.Itoa(t.Products), formatFloat(t.Units)})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(out, "bsr tiers", []string{"Tier", "Products", "Units"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
}
