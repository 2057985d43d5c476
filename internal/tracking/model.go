// Package tracking stores Best Seller Rank observations for tracked ASINs and
// derives sales estimates and coverage rollups from them.
package tracking

import (
	"embed"
	"errors"
	"time"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/internal/salesrank"
)

// Migrations holds the schema for the observation store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"

// ErrNotFound is returned when an ASIN has never been tracked.
var ErrNotFound = errors.New("tracking: asin not tracked")

// Product is the latest descriptive state of a tracked ASIN.
type Product struct {
	ASIN         string    `json:"asin"`
	Title        string    `json:"title"`
	Brand        string    `json:"brand"`
	Category     string    `json:"category"`
	CurrentPrice *float64  `json:"current_price"`
	FirstTracked time.Time `json:"first_tracked"`
	LastTracked  time.Time `json:"last_tracked"`
}

// Snapshot is one observation together with the listing details seen with it.
type Snapshot struct {
	salesrank.Observation
	Title    string `json:"title,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category,omitempty"`
}

// StoredEstimate is a persisted estimate row.
type StoredEstimate struct {
	ASIN                  string                `json:"asin"`
	BSR                   *int                  `json:"bsr"`
	EstimatedMonthlyUnits *float64              `json:"estimated_monthly_units"`
	BSRUnits              *float64              `json:"bsr_units"`
	VelocityUnits         *float64              `json:"velocity_units"`
	Method                salesrank.Method      `json:"estimation_method"`
	Combination           salesrank.Combination `json:"combination"`
	Confidence            salesrank.Confidence  `json:"confidence"`
	CalculatedAt          time.Time             `json:"calculated_at"`
}

// RollupRequest selects tracked ASINs and the catalog totals to compare
// against. An empty ASIN list selects every tracked product.
type RollupRequest struct {
	ASINs  []string        `json:"asins"`
	Totals coverage.Totals `json:"totals"`
}

// Estimate is the result of estimating one ASIN.
type Estimate struct {
	salesrank.Combined
	CalculatedAt time.Time `json:"calculated_at"`
}

func storedFrom(est Estimate, method salesrank.Method) StoredEstimate {
	row := StoredEstimate{
		ASIN:                  est.ASIN,
		EstimatedMonthlyUnits: est.EstimatedMonthlyUnits,
		Method:                method,
		Combination:           est.Method,
		Confidence:            salesrank.ConfidenceNone,
		CalculatedAt:          est.CalculatedAt,
	}
	if est.BSR != nil {
		bsr := est.BSR.BSR
		units := est.BSR.EstimatedMonthlyUnits
		row.BSR = &bsr
		row.BSRUnits = &units
		row.Confidence = est.BSR.Confidence
	}
	if est.Velocity != nil {
		units := est.Velocity.EstimatedMonthlyUnits
		row.VelocityUnits = &units
	}
	return row
}
