package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/catintel/catintel/internal/aggregate"
	"github.com/catintel/catintel/internal/export/svg"
)

// WriteSVG charts raw against weighted share for one distribution.
func WriteSVG(w io.Writer, dist aggregate.Distribution) error {
	if len(dist.Entries) == 0 {
		return fmt.Errorf("%w: %s", ErrNoData, dist.Dimension)
	}
	bars := make([]svg.Bar, 0, len(dist.Entries))
	for _, e := range dist.Entries {
		bars = append(bars, svg.Bar{Label: e.Label, Raw: e.RawPercentage, Weighted: e.Percentage})
	}
	title := strings.ReplaceAll(string(dist.Dimension), "_", " ")
	out, err := svg.ShareBars(svg.DefaultWidth, bars, svg.Opts{
		Title:       "Share by " + title,
		Description: fmt.Sprintf("Raw and weighted share of %d listings by %s", dist.RawTotal, title),
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
