package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catintel/catintel/internal/aggregate"
	"github.com/catintel/catintel/internal/bucket"
	"github.com/catintel/catintel/internal/catalog"
	"github.com/catintel/catintel/internal/weights"
)

type countingRecorder struct {
	records, issues, parallel int
}

func (c *countingRecorder) ObserveAnalysis(records, issues int, parallel bool) {
	c.records += records
	c.issues += issues
	if parallel {
		c.parallel++
	}
}

var fixedNow = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, threshold int, rec Recorder) *Service {
	t.Helper()
	file := weights.File{
		RetailerWeights: map[string]float64{"Home Depot": 0.3, "Walmart": 0.1},
		Profiles:        map[string]weights.Profile{"Walmart": {BudgetPct: 80, PremiumPct: 5}},
		ExpectedShares:  map[string]weights.Range{bucket.CategoryWorkbenches: {Min: 10, Max: 40}},
	}
	table, err := weights.New(file.Weights())
	require.NoError(t, err)
	return NewService(file, table, Options{
		Shards:            3,
		ParallelThreshold: threshold,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Recorder:          rec,
		Clock:             func() time.Time { return fixedNow },
	})
}

const listings = `{"products":[
	{"retailer":"Home Depot","sku":"HD1","title":"Husky Steel Workbench","price":"$149.99","reviews":120,"brand":"Husky"},
	{"retailer":"Walmart","asin":"W1","name":"Plastic Storage Bin","current_price":8,"review_count":null},
	{"source":"Walmart","id":"W2","name":"Wall Hook Set","price":-3,"rating":7}
]}`

func TestAnalyzeListings(t *testing.T) {
	rec := &countingRecorder{}
	svc := newTestService(t, 1000, rec)

	analysis, err := svc.AnalyzeListings(context.Background(), strings.NewReader(listings), "")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, analysis.RunID)
	assert.Equal(t, fixedNow, analysis.GeneratedAt)
	assert.Equal(t, 3, analysis.Result.Records)

	// Invalid price and rating are dropped and reported, not defaulted.
	require.Len(t, analysis.Issues, 2)
	assert.Equal(t, 1, analysis.Result.Price.Excluded)

	hd, ok := analysis.Result.Retailer.Lookup("Home Depot")
	require.True(t, ok)
	assert.InDelta(t, 0.3, hd.WeightedCount, 1e-9)
	assert.InDelta(t, 0.3/0.5*100, hd.Percentage, 1e-9)

	require.NotEmpty(t, analysis.TopProducts)
	assert.Equal(t, "HD1", analysis.TopProducts[0].SKU)
	require.Len(t, analysis.ShareChecks, 1)
	require.Len(t, analysis.Profiles, 2)

	assert.Equal(t, 3, rec.records)
	assert.Equal(t, 2, rec.issues)
	assert.Zero(t, rec.parallel)
}

func TestAnalyzeOverflowingPriceStaysEncodable(t *testing.T) {
	svc := newTestService(t, 1000, nil)
	payload := `[
		{"retailer":"Walmart","sku":"W1","name":"Bin","price":"1e400"},
		{"retailer":"Walmart","sku":"W2","name":"Shelf","price":1e400},
		{"retailer":"Walmart","sku":"W3","name":"Hook","price":12}
	]`
	analysis, err := svc.AnalyzeListings(context.Background(), strings.NewReader(payload), "")
	require.NoError(t, err)

	require.Len(t, analysis.Issues, 2)
	assert.Equal(t, 2, analysis.Result.Price.Excluded)

	_, err = json.Marshal(analysis)
	require.NoError(t, err)
}

func TestAnalyzeInfersCategory(t *testing.T) {
	svc := newTestService(t, 1000, nil)
	analysis, err := svc.AnalyzeListings(context.Background(), strings.NewReader(listings), "")
	require.NoError(t, err)
	_, ok := analysis.Result.Category.Lookup(bucket.CategoryWorkbenches)
	assert.True(t, ok)
}

func TestAnalyzeParallelMatchesSequential(t *testing.T) {
	records := make([]catalog.Record, 0, 300)
	retailers := []string{"Home Depot", "Walmart", "Lowes"}
	for i := 0; i < 300; i++ {
		price := float64(i%60) * 9.5
		records = append(records, catalog.Record{
			Retailer:    retailers[i%3],
			SKU:         fmt.Sprintf("S%03d", i),
			Name:        fmt.Sprintf("Item %d", i),
			Price:       &price,
			ReviewCount: i,
			Category:    []string{"bins", "shelving", "hooks"}[i%3],
			Brand:       []string{"Husky", "Gladiator", catalog.UnknownBrand, "Sterilite"}[i%4],
		})
	}
	rec := &countingRecorder{}
	sequential, err := newTestService(t, 10000, nil).Analyze(context.Background(), records)
	require.NoError(t, err)
	parallel, err := newTestService(t, 100, rec).Analyze(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.parallel)

	for i, want := range sequential.Result.Distributions() {
		got := parallel.Result.Distributions()[i]
		require.Equal(t, want.RawTotal, got.RawTotal)
		for _, e := range want.Entries {
			other, ok := got.Lookup(e.Label)
			require.True(t, ok, e.Label)
			assert.Equal(t, e.RawCount, other.RawCount)
			assert.InDelta(t, e.Percentage, other.Percentage, 1e-9)
		}
	}
	assert.NotEqual(t, sequential.RunID, parallel.RunID)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestService(t, 1000, nil).Analyze(ctx, []catalog.Record{{Name: "x"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeEmpty(t *testing.T) {
	analysis, err := newTestService(t, 1000, nil).AnalyzeListings(context.Background(), strings.NewReader(" "), "")
	require.NoError(t, err)
	assert.Zero(t, analysis.Result.Records)
	assert.Empty(t, analysis.Result.Price.Entries)
}

func TestLoadWithoutFileUsesUniformWeights(t *testing.T) {
	svc, err := Load("", Options{})
	require.NoError(t, err)
	assert.Equal(t, weights.DefaultWeight, svc.Table().Effective("anyone", "anything"))

	_, err = Load("/does/not/exist.toml", Options{})
	require.Error(t, err)
}

func TestDefaultRetailerApplied(t *testing.T) {
	svc := newTestService(t, 1000, nil)
	analysis, err := svc.AnalyzeListings(context.Background(), strings.NewReader(`[{"name":"Bench","price":50}]`), "Walmart")
	require.NoError(t, err)
	_, ok := analysis.Result.Retailer.Lookup("Walmart")
	assert.True(t, ok)
	assert.Equal(t, aggregate.DimensionRetailer, analysis.Result.Retailer.Dimension)
}
