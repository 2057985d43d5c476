package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/catintel/catintel/internal/aggregate"
)

var distributionHeader = []string{"Dimension", "Label", "Raw Count", "Raw %", "Weighted Count", "Weighted %"}

// WriteDistributionsCSV emits every distribution entry as one CSV row.
func WriteDistributionsCSV(w io.Writer, dists []aggregate.Distribution) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(distributionHeader); err != nil {
		return err
	}
	for _, dist := range dists {
		for _, e := range dist.Entries {
			if err := writer.Write([]string{
				string(dist.Dimension),
				e.Label,
				strconv.Itoa(e.RawCount),
				formatFloat(e.RawPercentage),
				formatFloat(e.WeightedCount),
				formatFloat(e.Percentage),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

var categoryHeader = []string{
	"Category", "Raw Count", "Weighted Count", "Share %", "Weighted Avg Price",
	"Weighted Avg Rating", "Weighted Avg Reviews", "Min Price", "Median Price", "Max Price",
	"Retailers", "Brands",
}

// WriteCategoriesCSV prints per-category statistics.
func WriteCategoriesCSV(w io.Writer, categories []aggregate.CategorySummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(categoryHeader); err != nil {
		return err
	}
	for _, c := range categories {
		if err := writer.Write(categoryRow(c)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func categoryRow(c aggregate.CategorySummary) []string {
	return []string{
		c.Category,
		strconv.Itoa(c.RawCount),
		formatFloat(c.WeightedCount),
		formatFloat(c.Share),
		formatOptional(c.WeightedAvgPrice),
		formatOptional(c.WeightedAvgRating),
		formatFloat(c.WeightedAvgReviews),
		formatOptional(c.MinPrice),
		formatOptional(c.MedianPrice),
		formatOptional(c.MaxPrice),
		strconv.Itoa(c.Retailers),
		strconv.Itoa(c.Brands),
	}
}
