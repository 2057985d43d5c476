package weights

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catintel/catintel/internal/bucket"
)

func sourceTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewBuilder().
		Retailer("Walmart", 0.38).
		Retailer("Homedepot", 0.85).
		Retailer("Amazon", 1.40).
		Retailer("Target", 1.67).
		Retailer("Lowes", 1.92).
		Retailer("Menards", 2.90).
		Retailer("Acehardware", 7.50).
		Category("Hooks & Hangers", 0.69).
		Build()
	require.NoError(t, err)
	return table
}

func TestEffectiveWeightIsProduct(t *testing.T) {
	table := sourceTable(t)
	assert.InDelta(t, 0.2622, table.Effective("Walmart", "Hooks & Hangers"), 1e-12)
	assert.InDelta(t, 7.50, table.Effective("Acehardware", "Shelving"), 1e-12)
}

func TestUnknownKeysDefaultToOne(t *testing.T) {
	table := sourceTable(t)
	for i := 0; i < 3; i++ {
		assert.Equal(t, DefaultWeight, table.RetailerWeight("Costco"))
		assert.Equal(t, DefaultWeight, table.CategoryWeight("Workbenches"))
	}
	assert.Equal(t, DefaultWeight, Empty().Effective("Walmart", "Hooks & Hangers"))

	var nilTable *Table
	assert.Equal(t, DefaultWeight, nilTable.Effective("anything", "anything"))
}

func TestKeyNormalisation(t *testing.T) {
	table := sourceTable(t)
	assert.Equal(t, 0.85, table.RetailerWeight("Home Depot"))
	assert.Equal(t, 0.85, table.RetailerWeight("HOMEDEPOT"))
	assert.Equal(t, 7.50, table.RetailerWeight("Ace Hardware"))
	assert.Equal(t, 1.92, table.RetailerWeight("Lowe's"))
	assert.Equal(t, 0.69, table.CategoryWeight("  hooks   &  hangers "))
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := New(Config{RetailerWeights: map[string]float64{"Walmart": w}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidWeight), "weight %v", w)
	}
	_, err := New(Config{CategoryWeights: map[string]float64{"Shelving": -0.5}})
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestNewRejectsConflictingAliases(t *testing.T) {
	_, err := New(Config{RetailerWeights: map[string]float64{"Home Depot": 0.85, "homedepot": 0.9}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts")

	_, err = New(Config{RetailerWeights: map[string]float64{"Home Depot": 0.85, "homedepot": 0.85}})
	assert.NoError(t, err)
}

func TestScaledMultipliesConfiguredOnly(t *testing.T) {
	table := sourceTable(t)
	scaled, err := table.Scaled(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.14, scaled.RetailerWeight("Walmart"), 1e-12)
	assert.InDelta(t, 2.07, scaled.CategoryWeight("Hooks & Hangers"), 1e-12)
	assert.Equal(t, DefaultWeight, scaled.RetailerWeight("Costco"))

	assert.InDelta(t, 0.38, table.RetailerWeight("Walmart"), 1e-12, "original unchanged")

	_, err = table.Scaled(0)
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestConfigRoundTripsNames(t *testing.T) {
	table := sourceTable(t)
	cfg := table.Config()
	assert.Equal(t, 0.38, cfg.RetailerWeights["Walmart"])
	cfg.RetailerWeights["Walmart"] = 10
	assert.Equal(t, 0.38, table.RetailerWeight("Walmart"), "config copy must not alias the table")

	entries := table.Retailers()
	require.Len(t, entries, 7)
	assert.Equal(t, "Acehardware", entries[0].Name)
}

const analysisTOML = `
[retailer_weights]
Walmart = 0.38
"Home Depot" = 0.85

[category_weights]
"Hooks & Hangers" = 0.69

[profiles.Walmart]
budget_pct = 60
premium_pct = 10
classification = "BUDGET"

[house_brands]
"Home Depot" = ["Husky", "HDX"]

[expected_shares."Hooks & Hangers"]
min = 15
max = 25

[[categories]]
label = "Wall Systems"
keywords = ["slatwall", "pegboard"]
`

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.toml")
	require.NoError(t, os.WriteFile(path, []byte(analysisTOML), 0o600))

	file, table, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.2622, table.Effective("walmart", "hooks & hangers"), 1e-12)
	assert.Equal(t, 0.85, table.RetailerWeight("HomeDepot"))
	assert.Equal(t, "BUDGET", file.Profiles["Walmart"].Classification)
	assert.Equal(t, []string{"Husky", "HDX"}, file.HouseBrands["Home Depot"])
	assert.Equal(t, Range{Min: 15, Max: 25}, file.ExpectedShares["Hooks & Hangers"])
	assert.Equal(t, "Wall Systems", file.Classifier().Classify("Pegboard kit"))
	assert.Equal(t, bucket.CategoryOther, file.Classifier().Classify("workbench"))
}

func TestDecodeJSON(t *testing.T) {
	body := `{"retailer_weights":{"Amazon":1.4},"category_weights":{}}`
	file, table, err := Decode(strings.NewReader(body), "json")
	require.NoError(t, err)
	assert.Equal(t, 1.4, table.RetailerWeight("amazon"))
	assert.Equal(t, bucket.CategoryWorkbenches, file.Classifier().Classify("Workbench"))
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, _, err := Decode(strings.NewReader("[retailer_weights]\nWalmart = 0\n"), "toml")
	assert.ErrorIs(t, err, ErrInvalidWeight)

	_, _, err = Decode(strings.NewReader("unknown_key = 1\n"), "toml")
	assert.Error(t, err)

	_, _, err = Decode(strings.NewReader(`{"expected_shares":{"Shelving":{"min":30,"max":10}}}`), "json")
	assert.Error(t, err)

	_, _, err = Decode(strings.NewReader(""), "yaml")
	assert.Error(t, err)
}

func TestLoadExampleFile(t *testing.T) {
	file, table, err := Load(filepath.Join("..", "..", "deploy", "weights.example.toml"))
	require.NoError(t, err)
	assert.InDelta(t, 0.30, table.RetailerWeight("homedepot"), 1e-12)
	assert.InDelta(t, 1.2*0.30, table.Effective("Home Depot", "workbenches"), 1e-12)
	assert.Equal(t, 1.0, table.RetailerWeight("Costco"))
	assert.Len(t, file.Categories, 5)
	assert.Equal(t, "Hooks & Hangers", file.Classifier().Classify("Steel Wall Hook"))
	assert.Contains(t, file.HouseBrands["Walmart"], "Mainstays")
}
