package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/catintel/catintel/internal/aggregate"
	"github.com/catintel/catintel/internal/export"
	"github.com/catintel/catintel/internal/market"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		weightsPath string
		retailer    string
		format      string
		outPath     string
		chart       string
		categories  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <listings.json>",
		Short: "Compute weighted distributions for a listings file",
		Long:  "Reads scraped listings (a JSON array or an object with a \"products\" array, \"-\" for stdin) and prints raw and weighted distributions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if weightsPath == "" {
				if cfg, err := ctx.config(); err == nil {
					weightsPath = cfg.WeightsFile
				}
			}
			service, err := market.Load(weightsPath, market.Options{Logger: ctx.logger(cmd.ErrOrStderr())})
			if err != nil {
				return err
			}

			in, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			analysis, err := service.AnalyzeListings(cmd.Context(), in, retailer)
			if err != nil {
				return err
			}

			if format != "" {
				return writeExport(cmd, analysis, format, outPath, chart, categories)
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, analysis)
			}
			printAnalysis(cmd.OutOrStdout(), analysis)
			return nil
		},
	}

	cmd.Flags().StringVarP(&weightsPath, "weights", "w", "", "Analysis file (.toml or .json); defaults to WEIGHTS_FILE")
	cmd.Flags().StringVarP(&retailer, "retailer", "r", "", "Retailer for listings that do not name one")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export as csv, xlsx or svg instead of printing tables")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Export destination (default stdout)")
	cmd.Flags().StringVar(&chart, "chart", string(aggregate.DimensionCategory), "Dimension charted by the svg export")
	cmd.Flags().BoolVar(&categories, "categories", false, "Export per-category statistics instead of distributions (csv only)")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open listings: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

func writeExport(cmd *cobra.Command, analysis market.Analysis, format, outPath, chart string, categories bool) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if categories && f != export.FormatCSV {
		return fmt.Errorf("--categories requires csv output, got %s", f)
	}
	out := cmd.OutOrStdout()
	if outPath != "" && outPath != "-" {
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create export: %w", err)
		}
		defer file.Close()
		out = file
	}
	if categories {
		err = export.WriteCategoriesCSV(out, analysis.Categories)
	} else {
		err = export.Write(out, f, analysis.Result, analysis.Categories, aggregate.Dimension(chart))
	}
	if err != nil {
		return err
	}
	if outPath != "" && outPath != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s export to %s\n", f, outPath)
	}
	return nil
}

func printAnalysis(out io.Writer, analysis market.Analysis) {
	fmt.Fprintf(out, "Run %s: %d listings, %d issues\n\n", analysis.RunID, analysis.Result.Records, len(analysis.Issues))

	for _, dist := range analysis.Result.Distributions() {
		rows := make([][]string, 0, len(dist.Entries))
		for _, e := range dist.Entries {
			rows = append(rows, []string{
				e.Label,
				strconv.Itoa(e.RawCount),
				formatFloat(e.RawPercentage),
				formatFloat(e.WeightedCount),
				formatFloat(e.Percentage),
			})
		}
		title := string(dist.Dimension)
		if dist.Excluded > 0 {
			title = fmt.Sprintf("%s (%d excluded)", title, dist.Excluded)
		}
		fmt.Fprintln(out, renderTable(out, title,
			[]string{"Label", "Raw", "Raw %", "Weighted", "Weighted %"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}))
		fmt.Fprintln(out)
	}

	if len(analysis.Profiles) > 0 {
		rows := make([][]string, 0, len(analysis.Profiles))
		for _, p := range analysis.Profiles {
			rows = append(rows, []string{
				p.Retailer,
				strconv.Itoa(p.Products),
				formatOptional(p.AvgPrice),
				formatFloat(p.BudgetPct),
				formatFloat(p.MidPct),
				formatFloat(p.PremiumPct),
				p.Classification,
				p.Status,
			})
		}
		fmt.Fprintln(out, renderTable(out, "retailer profiles",
			[]string{"Retailer", "Products", "Avg Price", "Budget %", "Mid %", "Premium %", "Class", "Status"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))
		fmt.Fprintln(out)
	}

	if len(analysis.ShareChecks) > 0 {
		rows := make([][]string, 0, len(analysis.ShareChecks))
		for _, c := range analysis.ShareChecks {
			rows = append(rows, []string{
				c.Label,
				formatFloat(c.Actual),
				fmt.Sprintf("%s-%s", formatFloat(c.Min), formatFloat(c.Max)),
				c.Status,
			})
		}
		fmt.Fprintln(out, renderTable(out, "category share checks",
			[]string{"Category", "Actual %", "Expected %", "Status"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight}))
		fmt.Fprintln(out)
	}

	for _, issue := range analysis.Issues {
		fmt.Fprintf(out, "issue: %s\n", issue)
	}
}
