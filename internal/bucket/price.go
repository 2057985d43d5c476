// Package bucket assigns products to price tiers, category groups and BSR tiers.
package bucket

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Unknown labels a value that could not be placed in any bucket.
const Unknown = "unknown"

// Price tier labels in canonical order.
const (
	PriceUnder10  = "<$10"
	Price10To20   = "$10-20"
	Price20To50   = "$20-50"
	Price50To100  = "$50-100"
	Price100To200 = "$100-200"
	Price200To500 = "$200-500"
	Price500Plus  = "$500+"
)

type priceTier struct {
	lower float64
	upper float64
	label string
}

// Tiers are inclusive-lower, exclusive-upper and cover [0, +Inf) without gaps.
var priceTiers = []priceTier{
	{0, 10, PriceUnder10},
	{10, 20, Price10To20},
	{20, 50, Price20To50},
	{50, 100, Price50To100},
	{100, 200, Price100To200},
	{200, 500, Price200To500},
	{500, math.Inf(1), Price500Plus},
}

// PriceLabels returns the seven price tier labels in ascending order.
func PriceLabels() []string {
	labels := make([]string, len(priceTiers))
	for i, tier := range priceTiers {
		labels[i] = tier.label
	}
	return labels
}

// PriceBucket classifies a price into its tier. Nil, negative and non-finite
// prices are reported as Unknown.
func PriceBucket(price *float64) string {
	if price == nil {
		return Unknown
	}
	v := *price
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Unknown
	}
	for _, tier := range priceTiers {
		if v >= tier.lower && v < tier.upper {
			return tier.label
		}
	}
	return Unknown
}

// PriceBucketValue coerces an arbitrary scraped value to a number before
// bucketing it.
func PriceBucketValue(value any) string {
	price, ok := CoercePrice(value)
	if !ok {
		return Unknown
	}
	return PriceBucket(&price)
}

// CoercePrice converts numbers, numeric strings and currency strings such as
// "$1,299.00" to a float. It reports false when the value is not numeric.
func CoercePrice(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return CoercePrice(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		return parseDecimal(v.String())
	case decimal.Decimal:
		return finite(v.InexactFloat64())
	case string:
		return parseDecimal(v)
	default:
		return 0, false
	}
}

func parseDecimal(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "US")
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		if f, ferr := strconv.ParseFloat(cleaned, 64); ferr == nil {
			return finite(f)
		}
		return 0, false
	}
	return finite(d.InexactFloat64())
}

// finite reports false for values that overflow float64.
func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Price segments used by retailer profiling.
const (
	SegmentBudget  = "budget"
	SegmentMid     = "mid"
	SegmentPremium = "premium"
)

// PriceSegment splits prices into budget (<$20), premium ($50+) and mid.
func PriceSegment(price float64) string {
	switch {
	case price < 20:
		return SegmentBudget
	case price >= 50:
		return SegmentPremium
	default:
		return SegmentMid
	}
}
