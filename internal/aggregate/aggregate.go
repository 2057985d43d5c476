// Package aggregate turns raw product listings into bias-corrected
// distributions using retailer and category weights.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/catintel/catintel/internal/bucket"
	"github.com/catintel/catintel/internal/catalog"
	"github.com/catintel/catintel/internal/weights"
)

// Dimension names a grouping axis.
type Dimension string

// Supported dimensions.
const (
	DimensionPrice    Dimension = "price_bucket"
	DimensionBrand    Dimension = "brand"
	DimensionCategory Dimension = "category"
	DimensionRetailer Dimension = "retailer"
)

var dimensions = []Dimension{DimensionPrice, DimensionBrand, DimensionCategory, DimensionRetailer}

const progressEvery = 1000

// Entry is one label of a distribution.
type Entry struct {
	Label         string  `json:"label"`
	RawCount      int     `json:"raw_count"`
	RawPercentage float64 `json:"raw_percentage"`
	WeightedCount float64 `json:"weighted_count"`
	Percentage    float64 `json:"percentage"`
}

// Distribution is the weighted breakdown of one dimension.
type Distribution struct {
	Dimension     Dimension `json:"dimension"`
	Entries       []Entry   `json:"entries"`
	RawTotal      int       `json:"raw_total"`
	WeightedTotal float64   `json:"weighted_total"`
	Excluded      int       `json:"excluded"`
}

// Lookup returns the entry for label.
func (d Distribution) Lookup(label string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Label == label {
			return e, true
		}
	}
	return Entry{}, false
}

// Shares maps label to weighted percentage.
func (d Distribution) Shares() map[string]float64 {
	out := make(map[string]float64, len(d.Entries))
	for _, e := range d.Entries {
		out[e.Label] = e.Percentage
	}
	return out
}

// Result holds every distribution produced by a run.
type Result struct {
	Records  int          `json:"records"`
	Price    Distribution `json:"price"`
	Brand    Distribution `json:"brand"`
	Category Distribution `json:"category"`
	Retailer Distribution `json:"retailer"`
}

// Distributions lists the distributions in a stable order.
func (r Result) Distributions() []Distribution {
	return []Distribution{r.Price, r.Brand, r.Category, r.Retailer}
}

// Progress is reported to the observer while records are accumulated.
type Progress struct {
	Processed int
	Total     int
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithObserver registers a progress callback. It is never called concurrently.
func WithObserver(fn func(Progress)) Option {
	return func(a *Aggregator) { a.observer = fn }
}

// WithLogger sets the logger used for run summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// Aggregator applies a weight table to product records. It holds no state
// between runs and may be shared.
type Aggregator struct {
	table    *weights.Table
	observer func(Progress)
	logger   *slog.Logger
}

// New constructs an Aggregator. A nil table weights every record at 1.
func New(table *weights.Table, opts ...Option) *Aggregator {
	if table == nil {
		table = weights.Empty()
	}
	a := &Aggregator{table: table}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Table exposes the weights in use.
func (a *Aggregator) Table() *weights.Table {
	return a.table
}

// Run aggregates records sequentially.
func (a *Aggregator) Run(records []catalog.Record) Result {
	acc := newAccumulator()
	for i, rec := range records {
		acc.add(rec, a.table)
		if a.observer != nil && (i+1)%progressEvery == 0 {
			a.observer(Progress{Processed: i + 1, Total: len(records)})
		}
	}
	if a.observer != nil {
		a.observer(Progress{Processed: len(records), Total: len(records)})
	}
	result := acc.result()
	a.logSummary(result, 1)
	return result
}

// RunParallel splits records into contiguous shards and sums their partial
// totals. The output matches Run up to floating point rounding.
func (a *Aggregator) RunParallel(ctx context.Context, records []catalog.Record, shards int) (Result, error) {
	if shards <= 1 || len(records) < shards*2 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		return a.Run(records), nil
	}

	size := (len(records) + shards - 1) / shards
	partials := make([]*accumulator, 0, shards)
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		acc := newAccumulator()
		partials = append(partials, acc)
		chunk := records[start:end]
		g.Go(func() error {
			for i, rec := range chunk {
				if i%progressEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				acc.add(rec, a.table)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("aggregate: parallel run: %w", err)
	}

	total := newAccumulator()
	for _, part := range partials {
		total.merge(part)
		if a.observer != nil {
			a.observer(Progress{Processed: total.records, Total: len(records)})
		}
	}
	result := total.result()
	a.logSummary(result, len(partials))
	return result, nil
}

func (a *Aggregator) logSummary(result Result, shards int) {
	if a.logger == nil {
		return
	}
	a.logger.Debug("aggregation complete",
		slog.Int("records", result.Records),
		slog.Int("shards", shards),
		slog.Int("price_excluded", result.Price.Excluded),
		slog.Float64("weighted_total", result.Category.WeightedTotal),
	)
}

type tally struct {
	label    string
	raw      int
	weighted float64
}

type accumulator struct {
	records  int
	dims     map[Dimension]map[string]*tally
	excluded map[Dimension]int
}

func newAccumulator() *accumulator {
	acc := &accumulator{
		dims:     make(map[Dimension]map[string]*tally, len(dimensions)),
		excluded: make(map[Dimension]int, len(dimensions)),
	}
	for _, d := range dimensions {
		acc.dims[d] = map[string]*tally{}
	}
	return acc
}

func (a *accumulator) add(rec catalog.Record, table *weights.Table) {
	a.records++
	w := table.Effective(rec.Retailer, rec.Category)

	if price := bucket.PriceBucket(rec.Price); price != bucket.Unknown {
		a.bump(DimensionPrice, price, price, 1, w)
	} else {
		a.excluded[DimensionPrice]++
	}
	for _, d := range []Dimension{DimensionBrand, DimensionCategory, DimensionRetailer} {
		label := labelOrUnknown(dimensionValue(d, rec))
		a.bump(d, bucketKey(d, label), label, 1, w)
	}
}

// bump adds to the bucket at key. The first label seen for a key is the one
// reported.
func (a *accumulator) bump(d Dimension, key, label string, raw int, weighted float64) {
	t, ok := a.dims[d][key]
	if !ok {
		t = &tally{label: label}
		a.dims[d][key] = t
	}
	t.raw += raw
	t.weighted += weighted
}

func (a *accumulator) merge(other *accumulator) {
	a.records += other.records
	for d, labels := range other.dims {
		for key, t := range labels {
			a.bump(d, key, t.label, t.raw, t.weighted)
		}
	}
	for d, n := range other.excluded {
		a.excluded[d] += n
	}
}

func (a *accumulator) result() Result {
	return Result{
		Records:  a.records,
		Price:    a.distribution(DimensionPrice),
		Brand:    a.distribution(DimensionBrand),
		Category: a.distribution(DimensionCategory),
		Retailer: a.distribution(DimensionRetailer),
	}
}

func (a *accumulator) distribution(d Dimension) Distribution {
	dist := Distribution{Dimension: d, Excluded: a.excluded[d], Entries: []Entry{}}
	labels := a.dims[d]
	for _, t := range labels {
		dist.RawTotal += t.raw
		dist.WeightedTotal += t.weighted
	}
	for _, t := range labels {
		dist.Entries = append(dist.Entries, Entry{
			Label:         t.label,
			RawCount:      t.raw,
			RawPercentage: safePercent(float64(t.raw), float64(dist.RawTotal)),
			WeightedCount: t.weighted,
			Percentage:    safePercent(t.weighted, dist.WeightedTotal),
		})
	}
	if d == DimensionPrice {
		order := make(map[string]int, 7)
		for i, label := range bucket.PriceLabels() {
			order[label] = i
		}
		sort.Slice(dist.Entries, func(i, j int) bool {
			return order[dist.Entries[i].Label] < order[dist.Entries[j].Label]
		})
		return dist
	}
	sort.Slice(dist.Entries, func(i, j int) bool {
		ei, ej := dist.Entries[i], dist.Entries[j]
		if ei.WeightedCount != ej.WeightedCount {
			return ei.WeightedCount > ej.WeightedCount
		}
		return ei.Label < ej.Label
	})
	return dist
}

func dimensionValue(d Dimension, rec catalog.Record) string {
	switch d {
	case DimensionBrand:
		return rec.Brand
	case DimensionCategory:
		return rec.Category
	default:
		return rec.Retailer
	}
}

// bucketKey folds labels that differ only in case or spacing into one bucket.
// Retailers and categories use the same keys as the weight table.
func bucketKey(d Dimension, label string) string {
	switch d {
	case DimensionRetailer:
		return weights.RetailerKey(label)
	case DimensionCategory, DimensionBrand:
		return weights.CategoryKey(label)
	default:
		return label
	}
}

func labelOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return bucket.Unknown
	}
	return s
}

func safePercent(value, total float64) float64 {
	if almostZero(total) {
		return 0
	}
	return (value / total) * 100
}

func almostZero(v float64) bool {
	return v > -1e-12 && v < 1e-12
}
