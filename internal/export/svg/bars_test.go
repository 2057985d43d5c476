package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShareBarsProducesSVG(t *testing.T) {
	out, err := ShareBars(480, []Bar{
		{Label: "$100-$200", Raw: 40, Weighted: 55.5},
		{Label: "<Budget & Co>", Raw: 60, Weighted: 44.5},
	}, Opts{Title: "Price buckets"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "<svg"))
	require.True(t, strings.HasSuffix(out, "</svg>"))
	require.Equal(t, 4+2, strings.Count(out, "<rect"))
	require.Contains(t, out, "price-buckets-share-title")
	require.Contains(t, out, "&lt;Budget &amp; Co&gt;")
	require.NotContains(t, out, "<Budget")
}

func TestShareBarsValidation(t *testing.T) {
	_, err := ShareBars(480, nil, Opts{})
	require.Error(t, err)

	_, err = ShareBars(100, []Bar{{Label: "a", Raw: 1}}, Opts{LabelWidth: 200})
	require.Error(t, err)
}

func TestShareBarsAllZero(t *testing.T) {
	out, err := ShareBars(0, []Bar{{Label: "none"}}, Opts{})
	require.NoError(t, err)
	require.Contains(t, out, "width=\"0.00\"")
}
