package catalog

import (
	"sort"
	"strings"
)

// PopularityReviews is the review volume used to rank listings. A missing
// review count and an explicit zero are treated alike.
func PopularityReviews(rec Record) int {
	if rec.ReviewCount < 0 {
		return 0
	}
	return rec.ReviewCount
}

// SortByPopularity orders records by review count, most reviewed first, then
// by name. The slice is sorted in place.
func SortByPopularity(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := PopularityReviews(records[i]), PopularityReviews(records[j])
		if ri != rj {
			return ri > rj
		}
		return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
	})
}

// MostPopular returns up to n records in popularity order without modifying
// the input.
func MostPopular(records []Record, n int) []Record {
	out := append([]Record(nil), records...)
	SortByPopularity(out)
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
