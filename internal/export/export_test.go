package export

import (
	"bytes"
	"encoding/csv"
	"mime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/catintel/catintel/internal/aggregate"
)

func sampleResult() aggregate.Result {
	return aggregate.Result{
		Records: 3,
		Price: aggregate.Distribution{
			Dimension: aggregate.DimensionPrice,
			Entries: []aggregate.Entry{
				{Label: "$50-$100", RawCount: 2, RawPercentage: 66.6667, WeightedCount: 1.2, Percentage: 54.5454},
				{Label: "$100-$200", RawCount: 1, RawPercentage: 33.3333, WeightedCount: 1, Percentage: 45.4545},
			},
			RawTotal:      3,
			WeightedTotal: 2.2,
		},
		Brand: aggregate.Distribution{
			Dimension: aggregate.DimensionBrand,
			Entries:   []aggregate.Entry{{Label: "Husky, Inc", RawCount: 3, RawPercentage: 100, WeightedCount: 2.2, Percentage: 100}},
		},
		Category: aggregate.Distribution{Dimension: aggregate.DimensionCategory},
		Retailer: aggregate.Distribution{Dimension: aggregate.DimensionRetailer},
	}
}

func TestWriteDistributionsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteDistributionsCSV(buf, sampleResult().Distributions()))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, distributionHeader, records[0])
	require.Equal(t, []string{"price_bucket", "$50-$100", "2", "66.67", "1.20", "54.55"}, records[1])
	require.Equal(t, "Husky, Inc", records[3][1])
}

func TestWriteCategoriesCSV(t *testing.T) {
	price := 120.0
	buf := &bytes.Buffer{}
	require.NoError(t, WriteCategoriesCSV(buf, []aggregate.CategorySummary{{Category: "workbenches", RawCount: 2, WeightedAvgPrice: &price}}))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "120.00", records[1][4])
	require.Equal(t, "", records[1][5])
}

func TestWriteXLSXOneSheetPerDistribution(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteXLSX(buf, sampleResult().Distributions(), []aggregate.CategorySummary{{Category: "bins", RawCount: 1}}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"price_bucket", "brand", "category", "retailer", "categories"}, f.GetSheetList())
	rows, err := f.GetRows("price_bucket")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Label", rows[0][0])
	require.Equal(t, "$50-$100", rows[1][0])
	require.Equal(t, "54.55", rows[1][4])
}

func TestWriteSVG(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, FormatSVG, sampleResult(), nil, aggregate.DimensionBrand))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<svg"))
	require.Contains(t, out, "Share by brand")
	require.Contains(t, out, "Husky, Inc")
}

func TestWriteSVGEmptyDistribution(t *testing.T) {
	err := WriteSVG(&bytes.Buffer{}, aggregate.Distribution{Dimension: aggregate.DimensionCategory})
	require.ErrorIs(t, err, ErrNoData)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)
	require.Equal(t, ".xlsx", f.Extension())
	require.Contains(t, f.ContentType(), "spreadsheetml")

	_, err = ParseFormat("pdf")
	require.Error(t, err)
}

func TestContentTypeFollowsMimeRegistry(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatXLSX, FormatSVG} {
		registered := mime.TypeByExtension(f.Extension())
		require.NotEmpty(t, registered, "format %s", f)
		require.Equal(t, registered, f.ContentType())
	}
	require.Equal(t, "image/svg+xml", FormatSVG.ContentType())
}
