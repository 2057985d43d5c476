package salesrank

import (
	"sort"
	"time"
)

// Observation is one snapshot of a product's rank, price and review state.
// A nil BSR means the product was unranked when observed.
type Observation struct {
	ASIN        string    `json:"asin" validate:"required"`
	BSR         *int      `json:"bsr"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
	ReviewCount int       `json:"review_count" validate:"gte=0"`
	AvgRating   *float64  `json:"avg_rating" validate:"omitempty,gte=0,lte=5"`
	ObservedAt  time.Time `json:"observed_at" validate:"required"`
}

// Ranked reports whether the observation carries a rank.
func (o Observation) Ranked() bool {
	return o.BSR != nil
}

// Latest selects, per ASIN, the most recent observation with a rank.
// ASINs that were never ranked are absent from the result.
func Latest(observations []Observation) map[string]Observation {
	out := make(map[string]Observation)
	for _, obs := range observations {
		if !obs.Ranked() {
			continue
		}
		current, ok := out[obs.ASIN]
		if !ok || obs.ObservedAt.After(current.ObservedAt) {
			out[obs.ASIN] = obs
		}
	}
	return out
}

// SalesEstimate is derived from the latest ranked observation of an ASIN.
type SalesEstimate struct {
	ASIN                  string     `json:"asin"`
	BSR                   int        `json:"bsr"`
	EstimatedMonthlyUnits float64    `json:"estimated_monthly_units"`
	Method                Method     `json:"estimation_method"`
	Confidence            Confidence `json:"confidence"`
	ObservedAt            time.Time  `json:"observed_at"`
}

// EstimateObservation estimates units for obs. It reports false for unranked
// or out of domain observations; those have no estimate rather than zero.
func (e Estimator) EstimateObservation(obs Observation) (SalesEstimate, bool) {
	if obs.BSR == nil {
		return SalesEstimate{}, false
	}
	units, err := e.Estimate(*obs.BSR)
	if err != nil {
		return SalesEstimate{}, false
	}
	return SalesEstimate{
		ASIN:                  obs.ASIN,
		BSR:                   *obs.BSR,
		EstimatedMonthlyUnits: units,
		Method:                e.method(),
		Confidence:            ConfidenceFor(*obs.BSR),
		ObservedAt:            obs.ObservedAt,
	}, true
}

// EstimateLatest estimates every ASIN from its latest ranked observation,
// ordered by ASIN.
func (e Estimator) EstimateLatest(observations []Observation) []SalesEstimate {
	latest := Latest(observations)
	out := make([]SalesEstimate, 0, len(latest))
	for _, obs := range latest {
		if est, ok := e.EstimateObservation(obs); ok {
			out = append(out, est)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ASIN < out[j].ASIN })
	return out
}

// TopSellers returns up to n estimates with the most units, ties broken by
// better rank.
func TopSellers(estimates []SalesEstimate, n int) []SalesEstimate {
	out := append([]SalesEstimate(nil), estimates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EstimatedMonthlyUnits != out[j].EstimatedMonthlyUnits {
			return out[i].EstimatedMonthlyUnits > out[j].EstimatedMonthlyUnits
		}
		return out[i].BSR < out[j].BSR
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
