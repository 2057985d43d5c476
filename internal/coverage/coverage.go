// Package coverage rolls tracked sales estimates up into volume, revenue and
// catalog coverage figures.
package coverage

import (
	"math"

	"github.com/catintel/catintel/internal/bucket"
	"github.com/catintel/catintel/internal/salesrank"
)

// Tracked is one tracked product with its latest estimate.
type Tracked struct {
	Estimate    salesrank.SalesEstimate `json:"estimate"`
	Price       *float64                `json:"price"`
	ReviewCount int                     `json:"review_count"`
}

// Totals describes the full catalog. Each metric is optional and reported
// separately; a nil metric produces no coverage figure.
type Totals struct {
	CatalogCount   *int     `json:"catalog_count,omitempty"`
	CatalogReviews *int     `json:"catalog_reviews,omitempty"`
	CatalogUnits   *float64 `json:"catalog_units,omitempty"`
}

// TierSummary counts tracked products per BSR tier.
type TierSummary struct {
	Tier     string  `json:"tier"`
	Products int     `json:"products"`
	Units    float64 `json:"units"`
}

// Report is the rollup of a tracked set. Undefined ratios are nil.
type Report struct {
	TrackedCount            int           `json:"tracked_count"`
	TrackedReviews          int           `json:"tracked_reviews"`
	TotalEstimatedUnits     float64       `json:"total_estimated_units"`
	AveragePrice            *float64      `json:"average_price"`
	EstimatedMonthlyRevenue *float64      `json:"estimated_monthly_revenue"`
	CountCoverage           *float64      `json:"count_coverage_pct"`
	ReviewCoverage          *float64      `json:"review_coverage_pct"`
	UnitCoverage            *float64      `json:"unit_coverage_pct"`
	Tiers                   []TierSummary `json:"tiers"`
}

// Rollup sums the tracked set and relates it to the catalog totals.
func Rollup(tracked []Tracked, totals Totals) Report {
	report := Report{TrackedCount: len(tracked)}
	tiers := make(map[string]*TierSummary)

	var priceSum float64
	var priced int
	for _, item := range tracked {
		units := item.Estimate.EstimatedMonthlyUnits
		report.TotalEstimatedUnits += units
		if item.ReviewCount > 0 {
			report.TrackedReviews += item.ReviewCount
		}
		if item.Price != nil && !math.IsNaN(*item.Price) && *item.Price >= 0 {
			priceSum += *item.Price
			priced++
		}
		label := bucket.BSRTier(item.Estimate.BSR)
		tier, ok := tiers[label]
		if !ok {
			tier = &TierSummary{Tier: label}
			tiers[label] = tier
		}
		tier.Products++
		tier.Units += units
	}

	if priced > 0 {
		avg := priceSum / float64(priced)
		revenue := report.TotalEstimatedUnits * avg
		report.AveragePrice = &avg
		report.EstimatedMonthlyRevenue = &revenue
	}
	if totals.CatalogCount != nil {
		report.CountCoverage = Ratio(float64(report.TrackedCount), float64(*totals.CatalogCount))
	}
	if totals.CatalogReviews != nil {
		report.ReviewCoverage = Ratio(float64(report.TrackedReviews), float64(*totals.CatalogReviews))
	}
	if totals.CatalogUnits != nil {
		report.UnitCoverage = Ratio(report.TotalEstimatedUnits, *totals.CatalogUnits)
	}

	for _, label := range append(bucket.BSRTierLabels(), bucket.Unknown) {
		if tier, ok := tiers[label]; ok {
			report.Tiers = append(report.Tiers, *tier)
		}
	}
	return report
}

// Ratio returns tracked/total as a percentage, or nil when total is zero or
// either input is not a finite number.
func Ratio(tracked, total float64) *float64 {
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) || math.IsNaN(tracked) || math.IsInf(tracked, 0) {
		return nil
	}
	pct := tracked / total * 100
	return &pct
}
