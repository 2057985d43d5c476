package salesrank

import (
	"sort"
	"time"
)

// DefaultReviewRate is the assumed share of buyers who leave a review.
const DefaultReviewRate = 0.02

// DefaultVelocityWindow is the lookback used for review velocity.
const DefaultVelocityWindow = 30 * 24 * time.Hour

const daysPerMonth = 30

// ReviewPoint is a review count observed at a point in time.
type ReviewPoint struct {
	ReviewCount int       `json:"review_count"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Velocity is a review-velocity based sales estimate.
type Velocity struct {
	ReviewsPerDay         float64 `json:"reviews_per_day"`
	EstimatedMonthlyUnits float64 `json:"estimated_monthly_units"`
}

// ReviewVelocity estimates monthly units from review growth inside the window
// ending at now. It needs at least two points in the window. The review gain
// is spread over the whole window; a flat or shrinking count yields zero.
func ReviewVelocity(history []ReviewPoint, window time.Duration, reviewRate float64, now time.Time) (Velocity, bool) {
	if window <= 0 {
		window = DefaultVelocityWindow
	}
	if reviewRate <= 0 {
		reviewRate = DefaultReviewRate
	}
	cutoff := now.Add(-window)
	points := make([]ReviewPoint, 0, len(history))
	for _, p := range history {
		if !p.ObservedAt.Before(cutoff) && !p.ObservedAt.After(now) {
			points = append(points, p)
		}
	}
	if len(points) < 2 {
		return Velocity{}, false
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ObservedAt.Before(points[j].ObservedAt) })

	gained := points[len(points)-1].ReviewCount - points[0].ReviewCount
	if gained <= 0 {
		return Velocity{}, true
	}
	perDay := float64(gained) / (window.Hours() / 24)
	return Velocity{
		ReviewsPerDay:         perDay,
		EstimatedMonthlyUnits: perDay / reviewRate * daysPerMonth,
	}, true
}

// Combination tags which inputs produced a combined estimate.
type Combination string

// Combination tags.
const (
	CombinedBoth     Combination = "combined"
	CombinedBSROnly  Combination = "bsr_only"
	CombinedVelocity Combination = "velocity_only"
	CombinedNone     Combination = "none"
)

// Combined merges the rank and velocity estimates of one product.
type Combined struct {
	ASIN                  string         `json:"asin"`
	BSR                   *SalesEstimate `json:"bsr,omitempty"`
	Velocity              *Velocity      `json:"velocity,omitempty"`
	EstimatedMonthlyUnits *float64       `json:"estimated_monthly_units"`
	Method                Combination    `json:"method"`
}

// Combine averages the two estimates when both exist and otherwise uses
// whichever is available.
func Combine(asin string, bsr *SalesEstimate, velocity *Velocity) Combined {
	out := Combined{ASIN: asin, BSR: bsr, Velocity: velocity, Method: CombinedNone}
	switch {
	case bsr != nil && velocity != nil:
		units := (bsr.EstimatedMonthlyUnits + velocity.EstimatedMonthlyUnits) / 2
		out.EstimatedMonthlyUnits = &units
		out.Method = CombinedBoth
	case bsr != nil:
		units := bsr.EstimatedMonthlyUnits
		out.EstimatedMonthlyUnits = &units
		out.Method = CombinedBSROnly
	case velocity != nil:
		units := velocity.EstimatedMonthlyUnits
		out.EstimatedMonthlyUnits = &units
		out.Method = CombinedVelocity
	}
	return out
}
