package main

import (
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/catintel/catintel/internal/app"
)

// commandContext carries global flags and lazily loaded configuration.
type commandContext struct {
	jsonOutput bool
	verbose    bool
	envFiles   []string

	once   sync.Once
	cfg    *app.Config
	cfgErr error
}

func (c *commandContext) config() (*app.Config, error) {
	c.once.Do(func() {
		c.cfg, c.cfgErr = app.LoadConfig(c.envFiles...)
	})
	return c.cfg, c.cfgErr
}

// logger writes to stderr so tables and JSON on stdout stay clean.
func (c *commandContext) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "catctl",
		Short:         "Category intelligence toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOutput, "json", false, "Print machine readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().StringSliceVar(&ctx.envFiles, "env-file", nil, "Load environment from these files instead of .env")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newEstimateCommand(ctx))
	rootCmd.AddCommand(newBoundariesCommand(ctx))
	rootCmd.AddCommand(newCoverageCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))

	return rootCmd
}
