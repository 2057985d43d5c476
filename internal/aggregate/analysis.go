package aggregate

import (
	"math"
	"sort"

	"github.com/catintel/catintel/internal/bucket"
	"github.com/catintel/catintel/internal/catalog"
	"github.com/catintel/catintel/internal/weights"
)

// Retailer price-mix classifications.
const (
	ClassPremium  = "PREMIUM"
	ClassBudget   = "BUDGET"
	ClassMidRange = "MID-RANGE"
	ClassUnknown  = "UNKNOWN"
)

// Expected-profile comparison outcomes.
const (
	StatusOK     = "OK"
	StatusMinor  = "MINOR"
	StatusBiased = "BIASED"
)

// Share check outcomes.
const (
	ShareUnder  = "under"
	ShareWithin = "within"
	ShareOver   = "over"
)

const (
	premiumClassPct    = 50.0
	budgetClassPct     = 70.0
	okGapPct           = 10.0
	biasedGapPct       = 20.0
	houseBrandHeavyPct = 60.0
	topBrandCount      = 3
)

// Expectations are analyst assumptions that results are compared against.
type Expectations struct {
	Profiles    map[string]weights.Profile
	HouseBrands map[string][]string
	Shares      map[string]weights.Range
}

// ExpectationsFrom extracts the expectations of an analysis file.
func ExpectationsFrom(f weights.File) Expectations {
	return Expectations{Profiles: f.Profiles, HouseBrands: f.HouseBrands, Shares: f.ExpectedShares}
}

// BrandCount is a brand with its raw listing count.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// CategorySummary describes one category after weighting.
type CategorySummary struct {
	Category           string       `json:"category"`
	RawCount           int          `json:"raw_count"`
	WeightedCount      float64      `json:"weighted_count"`
	Share              float64      `json:"share"`
	WeightedAvgPrice   *float64     `json:"weighted_avg_price"`
	WeightedAvgRating  *float64     `json:"weighted_avg_rating"`
	WeightedAvgReviews float64      `json:"weighted_avg_reviews"`
	MinPrice           *float64     `json:"min_price"`
	MaxPrice           *float64     `json:"max_price"`
	MedianPrice        *float64     `json:"median_price"`
	Retailers          int          `json:"retailers"`
	Brands             int          `json:"brands"`
	TopBrands          []BrandCount `json:"top_brands"`
}

type categoryAcc struct {
	raw       int
	weight    float64
	priceW    float64
	priceSum  float64
	ratingW   float64
	ratingSum float64
	reviewSum float64
	prices    []float64
	retailers map[string]struct{}
	brands    map[string]int
}

// SummarizeCategories computes weighted statistics per category, largest
// weighted share first.
func SummarizeCategories(records []catalog.Record, table *weights.Table) []CategorySummary {
	accs := map[string]*categoryAcc{}
	var total float64
	for _, rec := range records {
		label := labelOrUnknown(rec.Category)
		acc, ok := accs[label]
		if !ok {
			acc = &categoryAcc{retailers: map[string]struct{}{}, brands: map[string]int{}}
			accs[label] = acc
		}
		w := table.Effective(rec.Retailer, rec.Category)
		total += w
		acc.raw++
		acc.weight += w
		acc.reviewSum += w * float64(catalog.PopularityReviews(rec))
		if rec.Price != nil {
			acc.priceW += w
			acc.priceSum += w * *rec.Price
			acc.prices = append(acc.prices, *rec.Price)
		}
		if rec.Rating != nil {
			acc.ratingW += w
			acc.ratingSum += w * *rec.Rating
		}
		if rec.Retailer != "" {
			acc.retailers[weights.RetailerKey(rec.Retailer)] = struct{}{}
		}
		if rec.Brand != "" && rec.Brand != catalog.UnknownBrand {
			acc.brands[rec.Brand]++
		}
	}

	out := make([]CategorySummary, 0, len(accs))
	for label, acc := range accs {
		s := CategorySummary{
			Category:      label,
			RawCount:      acc.raw,
			WeightedCount: acc.weight,
			Share:         safePercent(acc.weight, total),
			Retailers:     len(acc.retailers),
			Brands:        len(acc.brands),
			TopBrands:     topBrands(acc.brands, topBrandCount),
		}
		if acc.weight > 0 {
			s.WeightedAvgReviews = acc.reviewSum / acc.weight
		}
		if acc.priceW > 0 {
			s.WeightedAvgPrice = ptr(acc.priceSum / acc.priceW)
		}
		if acc.ratingW > 0 {
			s.WeightedAvgRating = ptr(acc.ratingSum / acc.ratingW)
		}
		if len(acc.prices) > 0 {
			sort.Float64s(acc.prices)
			s.MinPrice = ptr(acc.prices[0])
			s.MaxPrice = ptr(acc.prices[len(acc.prices)-1])
			s.MedianPrice = ptr(median(acc.prices))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightedCount != out[j].WeightedCount {
			return out[i].WeightedCount > out[j].WeightedCount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func topBrands(counts map[string]int, n int) []BrandCount {
	out := make([]BrandCount, 0, len(counts))
	for brand, c := range counts {
		out = append(out, BrandCount{Brand: brand, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Brand < out[j].Brand
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// RetailerProfile is the price mix of one retailer's listings.
type RetailerProfile struct {
	Retailer        string           `json:"retailer"`
	Products        int              `json:"products"`
	Priced          int              `json:"priced"`
	AvgPrice        *float64         `json:"avg_price"`
	BudgetPct       float64          `json:"budget_pct"`
	MidPct          float64          `json:"mid_pct"`
	PremiumPct      float64          `json:"premium_pct"`
	Classification  string           `json:"classification"`
	Expected        *weights.Profile `json:"expected,omitempty"`
	BudgetGap       *float64         `json:"budget_gap,omitempty"`
	PremiumGap      *float64         `json:"premium_gap,omitempty"`
	Status          string           `json:"status,omitempty"`
	HouseBrandPct   *float64         `json:"house_brand_pct,omitempty"`
	HouseBrandHeavy bool             `json:"house_brand_heavy"`
}

type retailerAcc struct {
	name     string
	products int
	priced   int
	priceSum float64
	segments map[string]int
	brands   map[string]int
}

// ProfileRetailers classifies each retailer's price mix and compares it with
// the expected profile when one is configured.
func ProfileRetailers(records []catalog.Record, exp Expectations) []RetailerProfile {
	accs := map[string]*retailerAcc{}
	for _, rec := range records {
		key := weights.RetailerKey(rec.Retailer)
		acc, ok := accs[key]
		if !ok {
			acc = &retailerAcc{name: labelOrUnknown(rec.Retailer), segments: map[string]int{}, brands: map[string]int{}}
			accs[key] = acc
		}
		acc.products++
		acc.brands[bucketKey(DimensionBrand, rec.Brand)]++
		if rec.Price == nil {
			continue
		}
		acc.priced++
		acc.priceSum += *rec.Price
		acc.segments[bucket.PriceSegment(*rec.Price)]++
	}

	profiles := indexByRetailer(exp.Profiles)
	houseBrands := indexByRetailer(exp.HouseBrands)

	out := make([]RetailerProfile, 0, len(accs))
	for key, acc := range accs {
		p := RetailerProfile{Retailer: acc.name, Products: acc.products, Priced: acc.priced, Classification: ClassUnknown}
		if acc.priced > 0 {
			n := float64(acc.priced)
			p.AvgPrice = ptr(acc.priceSum / n)
			p.BudgetPct = safePercent(float64(acc.segments[bucket.SegmentBudget]), n)
			p.MidPct = safePercent(float64(acc.segments[bucket.SegmentMid]), n)
			p.PremiumPct = safePercent(float64(acc.segments[bucket.SegmentPremium]), n)
			p.Classification = classify(p.BudgetPct, p.PremiumPct)

			if expected, ok := profiles[key]; ok {
				e := expected
				p.Expected = &e
				budgetGap := p.BudgetPct - e.BudgetPct
				premiumGap := p.PremiumPct - e.PremiumPct
				p.BudgetGap = &budgetGap
				p.PremiumGap = &premiumGap
				p.Status = gapStatus(budgetGap, premiumGap)
			}
		}
		if brands, ok := houseBrands[key]; ok && len(brands) > 0 {
			var house int
			for _, b := range brands {
				house += acc.brands[bucketKey(DimensionBrand, b)]
			}
			pct := safePercent(float64(house), float64(acc.products))
			p.HouseBrandPct = &pct
			p.HouseBrandHeavy = pct > houseBrandHeavyPct
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Retailer < out[j].Retailer })
	return out
}

func classify(budgetPct, premiumPct float64) string {
	switch {
	case premiumPct > premiumClassPct:
		return ClassPremium
	case budgetPct > budgetClassPct:
		return ClassBudget
	default:
		return ClassMidRange
	}
}

func gapStatus(budgetGap, premiumGap float64) string {
	b, p := math.Abs(budgetGap), math.Abs(premiumGap)
	switch {
	case b < okGapPct && p < okGapPct:
		return StatusOK
	case b > biasedGapPct || p > biasedGapPct:
		return StatusBiased
	default:
		return StatusMinor
	}
}

func indexByRetailer[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for name, v := range in {
		out[weights.RetailerKey(name)] = v
	}
	return out
}

// ShareCheck compares one label's weighted share with its expected range.
type ShareCheck struct {
	Label  string  `json:"label"`
	Actual float64 `json:"actual"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Status string  `json:"status"`
	Gap    float64 `json:"gap"`
}

// CheckShares reports, for every expected label, whether the weighted share
// falls inside its range. Labels missing from the distribution count as 0%.
func CheckShares(dist Distribution, expected map[string]weights.Range) []ShareCheck {
	actual := make(map[string]float64, len(dist.Entries))
	for _, e := range dist.Entries {
		actual[weights.CategoryKey(e.Label)] += e.Percentage
	}
	out := make([]ShareCheck, 0, len(expected))
	for label, r := range expected {
		share := actual[weights.CategoryKey(label)]
		c := ShareCheck{Label: label, Actual: share, Min: r.Min, Max: r.Max, Status: ShareWithin}
		switch {
		case share < r.Min:
			c.Status = ShareUnder
			c.Gap = r.Min - share
		case share > r.Max:
			c.Status = ShareOver
			c.Gap = share - r.Max
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Gap != out[j].Gap {
			return out[i].Gap > out[j].Gap
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func ptr(v float64) *float64 { return &v }
