package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/catintel/catintel/internal/aggregate"
)

const (
	defaultSheet    = "Sheet1"
	categoriesSheet = "categories"
)

// WriteXLSX writes a workbook with one sheet per distribution plus a
// categories sheet when summaries are given.
func WriteXLSX(w io.Writer, dists []aggregate.Distribution, categories []aggregate.CategorySummary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: xlsx style: %w", err)
	}

	first := -1
	for _, dist := range dists {
		rows := make([][]any, 0, len(dist.Entries))
		for _, e := range dist.Entries {
			rows = append(rows, []any{e.Label, e.RawCount, round2(e.RawPercentage), round2(e.WeightedCount), round2(e.Percentage)})
		}
		idx, err := writeSheet(f, string(dist.Dimension), header,
			[]any{"Label", "Raw Count", "Raw %", "Weighted Count", "Weighted %"}, rows)
		if err != nil {
			return err
		}
		if first < 0 {
			first = idx
		}
	}

	if len(categories) > 0 {
		heading := make([]any, len(categoryHeader))
		for i, h := range categoryHeader {
			heading[i] = h
		}
		rows := make([][]any, 0, len(categories))
		for _, c := range categories {
			rows = append(rows, []any{
				c.Category, c.RawCount, round2(c.WeightedCount), round2(c.Share),
				optional(c.WeightedAvgPrice), optional(c.WeightedAvgRating), round2(c.WeightedAvgReviews),
				optional(c.MinPrice), optional(c.MedianPrice), optional(c.MaxPrice),
				c.Retailers, c.Brands,
			})
		}
		idx, err := writeSheet(f, categoriesSheet, header, heading, rows)
		if err != nil {
			return err
		}
		if first < 0 {
			first = idx
		}
	}

	if first >= 0 {
		f.SetActiveSheet(first)
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("export: xlsx: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: xlsx write: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, headerStyle int, heading []any, rows [][]any) (int, error) {
	idx, err := f.NewSheet(name)
	if err != nil {
		return 0, fmt.Errorf("export: xlsx sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &heading); err != nil {
		return 0, fmt.Errorf("export: xlsx header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(heading), 1)
	if err != nil {
		return 0, err
	}
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return 0, fmt.Errorf("export: xlsx header style: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return 0, fmt.Errorf("export: xlsx row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(name, "A", "A", 28); err != nil {
		return 0, err
	}
	return idx, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return round2(*v)
}
