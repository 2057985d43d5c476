// Package market runs weighted distribution analyses over scraped listings.
package market

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/catintel/catintel/internal/aggregate"
	"github.com/catintel/catintel/internal/catalog"
	"github.com/catintel/catintel/internal/weights"
)

const (
	defaultShards    = 4
	defaultThreshold = 5000
	topProducts      = 10
)

// Recorder receives per-analysis counts for metrics.
type Recorder interface {
	ObserveAnalysis(records, issues int, parallel bool)
}

// Options tunes an analysis Service.
type Options struct {
	Shards            int
	ParallelThreshold int
	Logger            *slog.Logger
	Recorder          Recorder
	Clock             func() time.Time
}

// Analysis is the outcome of one run over a set of listings.
type Analysis struct {
	RunID       uuid.UUID                   `json:"run_id"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Result      aggregate.Result            `json:"result"`
	Categories  []aggregate.CategorySummary `json:"categories"`
	Profiles    []aggregate.RetailerProfile `json:"profiles"`
	ShareChecks []aggregate.ShareCheck      `json:"share_checks"`
	TopProducts []catalog.Record            `json:"top_products"`
	Issues      []catalog.Issue             `json:"issues"`
}

// Service owns the weight table and expectations for its lifetime. Both are
// read-only after construction, so concurrent analyses are safe.
type Service struct {
	file       weights.File
	table      *weights.Table
	exp        aggregate.Expectations
	aggregator *aggregate.Aggregator
	shards     int
	threshold  int
	logger     *slog.Logger
	recorder   Recorder
	clock      func() time.Time
}

// NewService builds a Service. A nil table weights every record at 1.
func NewService(file weights.File, table *weights.Table, opts Options) *Service {
	if table == nil {
		table = weights.Empty()
	}
	s := &Service{
		file:      file,
		table:     table,
		exp:       aggregate.ExpectationsFrom(file),
		shards:    opts.Shards,
		threshold: opts.ParallelThreshold,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		clock:     opts.Clock,
	}
	if s.shards <= 0 {
		s.shards = defaultShards
	}
	if s.threshold <= 0 {
		s.threshold = defaultThreshold
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	s.aggregator = aggregate.New(table, aggregate.WithLogger(s.logger))
	return s
}

// Load reads the analysis file at path. An empty path yields a service with
// uniform weights and no expectations.
func Load(path string, opts Options) (*Service, error) {
	if path == "" {
		return NewService(weights.File{}, nil, opts), nil
	}
	file, table, err := weights.Load(path)
	if err != nil {
		return nil, err
	}
	return NewService(file, table, opts), nil
}

// Table exposes the weights in use.
func (s *Service) Table() *weights.Table {
	return s.table
}

// Decoder returns a listing decoder using the configured category taxonomy.
func (s *Service) Decoder(retailer string) *catalog.Decoder {
	return catalog.NewDecoder(catalog.WithClassifier(s.file.Classifier()), catalog.WithRetailer(retailer))
}

// AnalyzeListings decodes a listings payload and analyses it. retailer
// applies to listings that do not name one.
func (s *Service) AnalyzeListings(ctx context.Context, r io.Reader, retailer string) (Analysis, error) {
	records, issues, err := s.Decoder(retailer).Decode(r)
	if err != nil {
		return Analysis{}, err
	}
	return s.analyze(ctx, records, issues)
}

// Analyze aggregates already decoded records. Large inputs are sharded.
func (s *Service) Analyze(ctx context.Context, records []catalog.Record) (Analysis, error) {
	return s.analyze(ctx, records, nil)
}

func (s *Service) analyze(ctx context.Context, records []catalog.Record, issues []catalog.Issue) (Analysis, error) {
	runID := uuid.New()
	logger := s.logger.With(slog.String("run_id", runID.String()), slog.Int("records", len(records)))

	var (
		result aggregate.Result
		err    error
	)
	if len(records) >= s.threshold {
		result, err = s.aggregator.RunParallel(ctx, records, s.shards)
		if err != nil {
			logger.Error("parallel aggregation", slog.Any("error", err))
			return Analysis{}, err
		}
	} else {
		if err := ctx.Err(); err != nil {
			return Analysis{}, err
		}
		result = s.aggregator.Run(records)
	}

	analysis := Analysis{
		RunID:       runID,
		GeneratedAt: s.clock(),
		Result:      result,
		Categories:  aggregate.SummarizeCategories(records, s.table),
		Profiles:    aggregate.ProfileRetailers(records, s.exp),
		ShareChecks: aggregate.CheckShares(result.Category, s.exp.Shares),
		TopProducts: catalog.MostPopular(records, topProducts),
		Issues:      issues,
	}
	logger.Info("analysis complete",
		slog.Int("priced", result.Price.RawTotal),
		slog.Int("price_excluded", result.Price.Excluded),
		slog.Int("issues", len(issues)))
	if s.recorder != nil {
		s.recorder.ObserveAnalysis(len(records), len(issues), len(records) >= s.threshold)
	}
	return analysis, nil
}
