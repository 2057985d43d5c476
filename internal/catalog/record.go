// Package catalog models scraped retailer product listings and normalises the
// loosely keyed JSON that upstream scrapers produce.
package catalog

import (
	"fmt"
	"strings"
)

// UnknownBrand is assigned when a listing carries no brand.
const UnknownBrand = "unknown"

// Record is one retailer's listing of one product.
type Record struct {
	Retailer         string   `json:"retailer"`
	SKU              string   `json:"sku"`
	Name             string   `json:"name"`
	URL              string   `json:"url,omitempty"`
	Price            *float64 `json:"price" validate:"omitempty,gte=0"`
	Rating           *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	ReviewCount      int      `json:"review_count" validate:"gte=0"`
	Category         string   `json:"category"`
	CategoryInferred bool     `json:"category_inferred,omitempty"`
	Brand            string   `json:"brand"`
	Material         *string  `json:"material,omitempty"`
	Color            *string  `json:"color,omitempty"`
	WeightCapacity   *float64 `json:"weight_capacity,omitempty" validate:"omitempty,gte=0"`
}

// HasPrice reports whether a usable price was observed.
func (r Record) HasPrice() bool {
	return r.Price != nil
}

// Issue describes a field that was dropped while loading a record.
type Issue struct {
	Index  int    `json:"index"`
	SKU    string `json:"sku,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	id := i.SKU
	if id == "" {
		id = fmt.Sprintf("#%d", i.Index)
	}
	return fmt.Sprintf("%s %s: %s", id, i.Field, i.Reason)
}

// Extraction holds attributes derived after scraping, for example by a text
// extraction pass over the product description.
type Extraction struct {
	Brand          *string  `json:"brand,omitempty"`
	Category       *string  `json:"category,omitempty"`
	Material       *string  `json:"material,omitempty"`
	Color          *string  `json:"color,omitempty"`
	WeightCapacity *float64 `json:"weight_capacity,omitempty"`
}

// Enrich fills fields of rec that are still unset from extracted. Values that
// were already observed are never overwritten.
func Enrich(rec Record, extracted Extraction) Record {
	out := rec
	if extracted.Brand != nil && (out.Brand == "" || out.Brand == UnknownBrand) {
		if b := strings.TrimSpace(*extracted.Brand); b != "" {
			out.Brand = b
		}
	}
	if extracted.Category != nil && out.Category == "" {
		if c := strings.TrimSpace(*extracted.Category); c != "" {
			out.Category = c
			out.CategoryInferred = false
		}
	}
	out.Material = fillString(out.Material, extracted.Material)
	out.Color = fillString(out.Color, extracted.Color)
	out.WeightCapacity = fillFloat(out.WeightCapacity, extracted.WeightCapacity)
	return out
}

func fillString(current, candidate *string) *string {
	if current != nil || candidate == nil {
		return current
	}
	v := *candidate
	return &v
}

func fillFloat(current, candidate *float64) *float64 {
	if current != nil || candidate == nil {
		return current
	}
	v := *candidate
	return &v
}
