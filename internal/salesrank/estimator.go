// Package salesrank converts Amazon Best Seller Rank observations into
// monthly unit-sales estimates.
package salesrank

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrOutOfDomain is returned for ranks that are zero or negative.
var ErrOutOfDomain = errors.New("salesrank: bsr must be a positive integer")

// Method tags the formula that produced an estimate.
type Method string

const (
	// MethodLegacy is the published piecewise heuristic, reproduced exactly.
	MethodLegacy Method = "bsr_tier_formula"
	// MethodMonotonic is the upper monotone envelope of MethodLegacy: a better
	// rank never yields fewer units than a worse one.
	MethodMonotonic Method = "bsr_tier_monotonic"
)

// ParseMethod accepts a method tag or the short names "legacy" and "monotonic".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy", string(MethodLegacy):
		return MethodLegacy, nil
	case "monotonic", string(MethodMonotonic):
		return MethodMonotonic, nil
	default:
		return "", fmt.Errorf("salesrank: unknown estimation method %q", s)
	}
}

// Regime edges: each regime starts at its edge and runs to the next one.
var edges = []int{100, 1000, 10000}

// Estimate applies the legacy formula.
func Estimate(bsr int) (float64, error) {
	return Estimator{Method: MethodLegacy}.Estimate(bsr)
}

// Estimator maps a rank to estimated monthly units. The zero value uses
// MethodLegacy.
type Estimator struct {
	Method Method
}

// NewEstimator returns an estimator for method.
func NewEstimator(method Method) Estimator {
	return Estimator{Method: method}
}

func (e Estimator) method() Method {
	if e.Method == "" {
		return MethodLegacy
	}
	return e.Method
}

// Tag returns the method tag attached to estimates.
func (e Estimator) Tag() Method {
	return e.method()
}

// Estimate returns the monthly unit estimate for bsr, never below zero.
func (e Estimator) Estimate(bsr int) (float64, error) {
	if bsr <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrOutOfDomain, bsr)
	}
	var units float64
	switch e.method() {
	case MethodLegacy:
		units = legacy(bsr)
	case MethodMonotonic:
		units = monotonic(bsr)
	default:
		return 0, fmt.Errorf("salesrank: unknown estimation method %q", e.Method)
	}
	return math.Max(0, units), nil
}

func legacy(bsr int) float64 {
	b := float64(bsr)
	switch {
	case bsr < 100:
		return 3500 - b*25
	case bsr < 1000:
		return 2500 - b*2
	case bsr < 10000:
		return 1500 - b*0.15
	default:
		return math.Max(50, 100-b*0.001)
	}
}

// monotonic floors every regime at the legacy value of the next regime's
// first rank, which removes the upward jumps at each edge.
func monotonic(bsr int) float64 {
	units := legacy(bsr)
	for _, edge := range edges {
		if bsr < edge {
			return math.Max(units, legacy(edge))
		}
	}
	return units
}

// Boundary compares the estimate on both sides of a regime edge.
type Boundary struct {
	Rank      int     `json:"rank"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Jump      float64 `json:"jump"`
	Monotonic bool    `json:"monotonic"`
}

// Boundaries reports, for each regime edge, the estimate at edge-1 and at
// the edge. Under MethodLegacy the edge at 100 jumps from 1025 to 2300
// units, so a worse rank is credited with more sales.
func (e Estimator) Boundaries() []Boundary {
	out := make([]Boundary, 0, len(edges))
	for _, edge := range edges {
		before, _ := e.Estimate(edge - 1)
		after, _ := e.Estimate(edge)
		out = append(out, Boundary{
			Rank:      edge,
			Before:    before,
			After:     after,
			Jump:      after - before,
			Monotonic: after <= before,
		})
	}
	return out
}

// Confidence grades how reliable the heuristic is at a given rank.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
	ConfidenceNone    Confidence = "none"
)

// ConfidenceFor returns the confidence level for bsr.
func ConfidenceFor(bsr int) Confidence {
	switch {
	case bsr <= 0:
		return ConfidenceNone
	case bsr < 1000:
		return ConfidenceHigh
	case bsr < 10000:
		return ConfidenceMedium
	case bsr < 50000:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}
