package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/internal/market"
	"github.com/catintel/catintel/internal/salesrank"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEstimateJSON(t *testing.T) {
	out, err := runCLI(t, "estimate", "--json", "--method", "legacy", "50", "150", "20000")
	require.NoError(t, err)

	var got []rankEstimate
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, 2250.0, got[0].EstimatedMonthlyUnits)
	assert.Equal(t, 2200.0, got[1].EstimatedMonthlyUnits)
	assert.Equal(t, 80.0, got[2].EstimatedMonthlyUnits)
	assert.Equal(t, salesrank.MethodLegacy, got[0].Method)
	assert.Equal(t, salesrank.ConfidenceLow, got[2].Confidence)
}

func TestEstimateRejectsBadRank(t *testing.T) {
	_, err := runCLI(t, "estimate", "--method", "legacy", "0")
	require.ErrorIs(t, err, salesrank.ErrOutOfDomain)

	_, err = runCLI(t, "estimate", "--method", "legacy", "top")
	require.Error(t, err)

	_, err = runCLI(t, "estimate", "--method", "fancy", "10")
	require.Error(t, err)
}

func TestEstimateTable(t *testing.T) {
	out, err := runCLI(t, "estimate", "-m", "monotonic", "99")
	require.NoError(t, err)
	assert.Contains(t, out, "2300.00")
	assert.Contains(t, out, "high")
}

func TestBoundaries(t *testing.T) {
	out, err := runCLI(t, "boundaries", "--json", "-m", "legacy")
	require.NoError(t, err)

	var legacy []salesrank.Boundary
	require.NoError(t, json.Unmarshal([]byte(out), &legacy))
	require.Len(t, legacy, 3)
	assert.Equal(t, 100, legacy[0].Rank)
	assert.Equal(t, 1025.0, legacy[0].Before)
	assert.Equal(t, 2300.0, legacy[0].After)
	assert.False(t, legacy[0].Monotonic)

	out, err = runCLI(t, "boundaries", "--json", "-m", "monotonic")
	require.NoError(t, err)
	var monotonic []salesrank.Boundary
	require.NoError(t, json.Unmarshal([]byte(out), &monotonic))
	for _, b := range monotonic {
		assert.True(t, b.Monotonic, "edge %d", b.Rank)
	}
}

const cliListings = `[
	{"retailer":"Home Depot","sku":"HD1","title":"Husky Steel Workbench","price":149.99,"reviews":120,"brand":"Husky"},
	{"retailer":"Walmart","sku":"W1","name":"Plastic Storage Bin","price":8,"review_count":3}
]`

const cliWeights = `
[retailer_weights]
"Home Depot" = 0.3
Walmart = 0.1
`

func TestAnalyzeJSON(t *testing.T) {
	listings := writeFile(t, "listings.json", cliListings)
	weightsPath := writeFile(t, "weights.toml", cliWeights)

	out, err := runCLI(t, "analyze", "--json", "--weights", weightsPath, listings)
	require.NoError(t, err)

	var analysis market.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &analysis))
	assert.Equal(t, 2, analysis.Result.Records)

	hd, ok := analysis.Result.Retailer.Lookup("Home Depot")
	require.True(t, ok)
	assert.InDelta(t, 75.0, hd.Percentage, 1e-9)
	assert.InDelta(t, 50.0, hd.RawPercentage, 1e-9)
}

func TestAnalyzeTablesAndExport(t *testing.T) {
	listings := writeFile(t, "listings.json", cliListings)
	weightsPath := writeFile(t, "weights.toml", cliWeights)

	out, err := runCLI(t, "analyze", "--weights", weightsPath, listings)
	require.NoError(t, err)
	assert.Contains(t, out, "Weighted %")
	assert.Contains(t, out, "Home Depot")

	out, err = runCLI(t, "analyze", "--weights", weightsPath, "--format", "csv", listings)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Dimension,Label"), out)

	out, err = runCLI(t, "analyze", "--weights", weightsPath, "--format", "csv", "--categories", listings)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Category,Raw Count"), out)

	_, err = runCLI(t, "analyze", "--weights", weightsPath, "--format", "xlsx", "--categories", listings)
	require.Error(t, err)

	_, err = runCLI(t, "analyze", "--weights", weightsPath, "--format", "pdf", listings)
	require.Error(t, err)
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := runCLI(t, "analyze", "--weights", writeFile(t, "w.toml", cliWeights), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

const cliObservations = `[
	{"asin":"A1","bsr":5000,"price":10,"review_count":90,"observed_at":"2025-03-01T00:00:00Z"},
	{"asin":"A1","bsr":50,"price":10,"review_count":100,"observed_at":"2025-03-02T00:00:00Z"},
	{"asin":"A2","bsr":null,"price":20,"review_count":5,"observed_at":"2025-03-02T00:00:00Z"}
]`

func TestCoverageOffline(t *testing.T) {
	path := writeFile(t, "observations.json", cliObservations)

	out, err := runCLI(t, "coverage", "--json", "-m", "legacy", "--observations", path, "--catalog-count", "10")
	require.NoError(t, err)

	var report coverage.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.TrackedCount)
	assert.Equal(t, 100, report.TrackedReviews)
	assert.Equal(t, 2250.0, report.TotalEstimatedUnits)
	require.NotNil(t, report.CountCoverage)
	assert.InDelta(t, 10.0, *report.CountCoverage, 1e-9)
	assert.Nil(t, report.ReviewCoverage)
	require.NotNil(t, report.EstimatedMonthlyRevenue)
	assert.InDelta(t, 22500.0, *report.EstimatedMonthlyRevenue, 1e-9)
}

func TestCoverageOfflineSelectsASINs(t *testing.T) {
	path := writeFile(t, "observations.json", cliObservations)

	out, err := runCLI(t, "coverage", "--json", "-m", "legacy", "--observations", path, "--asin", "A2")
	require.NoError(t, err)

	var report coverage.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 0, report.TrackedCount)
	assert.Nil(t, report.AveragePrice)
}

func TestJobsRejectsUnknownName(t *testing.T) {
	cli := &jobsCLI{}
	_, err := cli.trigger(t.Context(), "reindex", nil, coverage.Totals{})
	require.Error(t, err)

	_, err = cli.stats()
	require.Error(t, err)
}
