package bucket

// BSR tier labels.
const (
	RankTop100    = "Top 100"
	RankTop1000   = "Top 1000"
	RankTop10K    = "Top 10K"
	RankTop100K   = "Top 100K"
	RankBelow100K = "Below 100K"
)

// BSRTierLabels returns the rank tiers from best to worst.
func BSRTierLabels() []string {
	return []string{RankTop100, RankTop1000, RankTop10K, RankTop100K, RankBelow100K}
}

// BSRTier groups a best seller rank. Non-positive ranks are Unknown.
func BSRTier(bsr int) string {
	switch {
	case bsr <= 0:
		return Unknown
	case bsr < 100:
		return RankTop100
	case bsr < 1000:
		return RankTop1000
	case bsr < 10000:
		return RankTop10K
	case bsr < 100000:
		return RankTop100K
	default:
		return RankBelow100K
	}
}
