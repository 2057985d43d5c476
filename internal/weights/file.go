package weights

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/catintel/catintel/internal/bucket"
)

// Profile is the price mix an analyst expects from a retailer, in percent.
type Profile struct {
	BudgetPct      float64 `json:"budget_pct" toml:"budget_pct"`
	PremiumPct     float64 `json:"premium_pct" toml:"premium_pct"`
	Classification string  `json:"classification" toml:"classification"`
}

// Range is an inclusive expected share interval, in percent.
type Range struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

// File is the on-disk analysis configuration: the weights plus the analyst
// expectations that bias checks compare against.
type File struct {
	RetailerWeights map[string]float64  `json:"retailer_weights" toml:"retailer_weights"`
	CategoryWeights map[string]float64  `json:"category_weights" toml:"category_weights"`
	Profiles        map[string]Profile  `json:"profiles" toml:"profiles"`
	HouseBrands     map[string][]string `json:"house_brands" toml:"house_brands"`
	ExpectedShares  map[string]Range    `json:"expected_shares" toml:"expected_shares"`
	Categories      []bucket.Group      `json:"categories" toml:"categories"`
}

// Weights extracts the weight configuration.
func (f File) Weights() Config {
	return Config{RetailerWeights: f.RetailerWeights, CategoryWeights: f.CategoryWeights}
}

// Validate checks expectation ranges; weights are checked by New.
func (f File) Validate() error {
	for name, p := range f.Profiles {
		if p.BudgetPct < 0 || p.BudgetPct > 100 || p.PremiumPct < 0 || p.PremiumPct > 100 {
			return fmt.Errorf("weights: profile %q percentages must lie in [0,100]", name)
		}
	}
	for name, r := range f.ExpectedShares {
		if r.Min < 0 || r.Max > 100 || r.Min > r.Max {
			return fmt.Errorf("weights: expected share %q has invalid range [%v,%v]", name, r.Min, r.Max)
		}
	}
	for i, g := range f.Categories {
		if strings.TrimSpace(g.Label) == "" {
			return fmt.Errorf("weights: category group %d has no label", i)
		}
	}
	return nil
}

// Classifier returns a classifier over the configured groups, or the default
// taxonomy when none are configured.
func (f File) Classifier() *bucket.Classifier {
	if len(f.Categories) == 0 {
		return bucket.DefaultClassifier()
	}
	return bucket.NewClassifier(f.Categories, bucket.CategoryOther)
}

// Load reads a .toml or .json analysis file and builds its table.
func Load(path string) (File, *Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("weights: open %s: %w", path, err)
	}
	defer file.Close()

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return Decode(file, format)
}

// Decode parses an analysis file in the given format ("toml" or "json").
func Decode(r io.Reader, format string) (File, *Table, error) {
	var f File
	switch format {
	case "toml", "":
		if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&f); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return File{}, nil, fmt.Errorf("weights: parse toml: %s", strict.String())
			}
			return File{}, nil, fmt.Errorf("weights: parse toml: %w", err)
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return File{}, nil, fmt.Errorf("weights: parse json: %w", err)
		}
	default:
		return File{}, nil, fmt.Errorf("weights: unsupported format %q", format)
	}
	if err := f.Validate(); err != nil {
		return File{}, nil, err
	}
	table, err := New(f.Weights())
	if err != nil {
		return File{}, nil, err
	}
	return f, table, nil
}
