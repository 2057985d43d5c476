// Package weights holds the retailer and category correction multipliers used
// to reweight scraped product counts toward true market share.
package weights

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultWeight applies to any retailer or category that is not configured.
const DefaultWeight = 1.0

// ErrInvalidWeight is returned when a configured weight is not a positive finite number.
var ErrInvalidWeight = errors.New("weights: weight must be a positive finite number")

// Config is the externally supplied weighting assumption for a run.
type Config struct {
	RetailerWeights map[string]float64 `json:"retailer_weights" toml:"retailer_weights"`
	CategoryWeights map[string]float64 `json:"category_weights" toml:"category_weights"`
}

// Table is an immutable, total lookup from retailer and category to weight.
// It is safe for concurrent use.
type Table struct {
	retailers  map[string]entry
	categories map[string]entry
}

type entry struct {
	name   string
	weight float64
}

// New validates cfg and builds a Table.
func New(cfg Config) (*Table, error) {
	retailers, err := buildEntries(cfg.RetailerWeights, RetailerKey, "retailer")
	if err != nil {
		return nil, err
	}
	categories, err := buildEntries(cfg.CategoryWeights, CategoryKey, "category")
	if err != nil {
		return nil, err
	}
	return &Table{retailers: retailers, categories: categories}, nil
}

// Empty returns a table where every lookup yields DefaultWeight.
func Empty() *Table {
	return &Table{retailers: map[string]entry{}, categories: map[string]entry{}}
}

func buildEntries(in map[string]float64, key func(string) string, kind string) (map[string]entry, error) {
	out := make(map[string]entry, len(in))
	for name, w := range in {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, fmt.Errorf("%w: %s %q = %v", ErrInvalidWeight, kind, name, w)
		}
		k := key(name)
		if k == "" {
			return nil, fmt.Errorf("weights: empty %s name", kind)
		}
		if existing, ok := out[k]; ok && existing.weight != w {
			return nil, fmt.Errorf("weights: %s %q conflicts with %q", kind, name, existing.name)
		}
		out[k] = entry{name: name, weight: w}
	}
	return out, nil
}

// RetailerWeight returns the configured weight or DefaultWeight.
func (t *Table) RetailerWeight(retailer string) float64 {
	if t == nil {
		return DefaultWeight
	}
	if e, ok := t.retailers[RetailerKey(retailer)]; ok {
		return e.weight
	}
	return DefaultWeight
}

// CategoryWeight returns the configured weight or DefaultWeight.
func (t *Table) CategoryWeight(category string) float64 {
	if t == nil {
		return DefaultWeight
	}
	if e, ok := t.categories[CategoryKey(category)]; ok {
		return e.weight
	}
	return DefaultWeight
}

// Effective is retailer_weight × category_weight.
func (t *Table) Effective(retailer, category string) float64 {
	return t.RetailerWeight(retailer) * t.CategoryWeight(category)
}

// Scaled returns a copy with every configured weight multiplied by k.
// Unconfigured keys keep DefaultWeight.
func (t *Table) Scaled(k float64) (*Table, error) {
	if math.IsNaN(k) || math.IsInf(k, 0) || k <= 0 {
		return nil, fmt.Errorf("%w: scale %v", ErrInvalidWeight, k)
	}
	cfg := t.Config()
	for name, w := range cfg.RetailerWeights {
		cfg.RetailerWeights[name] = w * k
	}
	for name, w := range cfg.CategoryWeights {
		cfg.CategoryWeights[name] = w * k
	}
	return New(cfg)
}

// Config returns a copy of the configuration the table was built from.
func (t *Table) Config() Config {
	cfg := Config{RetailerWeights: map[string]float64{}, CategoryWeights: map[string]float64{}}
	if t == nil {
		return cfg
	}
	for _, e := range t.retailers {
		cfg.RetailerWeights[e.name] = e.weight
	}
	for _, e := range t.categories {
		cfg.CategoryWeights[e.name] = e.weight
	}
	return cfg
}

// Entry is a named weight for display.
type Entry struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Retailers lists configured retailer weights sorted by name.
func (t *Table) Retailers() []Entry {
	if t == nil {
		return nil
	}
	return sortedEntries(t.retailers)
}

// Categories lists configured category weights sorted by name.
func (t *Table) Categories() []Entry {
	if t == nil {
		return nil
	}
	return sortedEntries(t.categories)
}

func sortedEntries(m map[string]entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, Entry{Name: e.name, Weight: e.weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RetailerKey normalises a retailer name: case-folded with spaces and
// punctuation removed, so "Home Depot" and "homedepot" collide.
func RetailerKey(name string) string {
	folded := cases.Fold().String(name)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, folded)
}

// CategoryKey normalises a category name: case-folded, trimmed, inner
// whitespace collapsed.
func CategoryKey(name string) string {
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}
