package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// ShareBars renders a horizontal chart with a raw and a weighted bar per row.
// Values are percentages; the axis always starts at zero. Height grows with
// the number of rows.
func ShareBars(width int, bars []Bar, opts Opts) (string, error) {
	if len(bars) == 0 {
		return "", fmt.Errorf("svg: at least one bar required")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	padding := positive(opts.Padding, DefaultPadding)
	labelWidth := positive(opts.LabelWidth, DefaultLabelWidth)
	rowHeight := positive(opts.RowHeight, DefaultRowHeight)
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}

	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	rawColor := fallback(opts.RawColor, "#94a3b8")
	weightedColor := fallback(opts.WeightedColor, "#0ea5e9")
	rawLabel := fallback(opts.RawLabel, "Raw")
	weightedLabel := fallback(opts.WeightedLabel, "Weighted")

	left := padding + labelWidth
	chartWidth := float64(width) - left - padding
	if chartWidth <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	top := padding + 16
	chartHeight := rowHeight * float64(len(bars))
	height := int(math.Ceil(top + chartHeight + padding + 14))

	maxVal := 0.0
	for _, bar := range bars {
		maxVal = math.Max(maxVal, math.Max(bar.Raw, bar.Weighted))
	}
	if almostZero(maxVal) {
		maxVal = 1
	}
	scale := chartWidth / maxVal
	barHeight := rowHeight * 0.35

	titleID := makeID(opts.Title, "share-title")
	descID := makeID(opts.Title, "share-desc")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Share chart")))
	fmt.Fprintf(&b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Raw and weighted share per label")))

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		x := left + ratio*chartWidth
		fmt.Fprintf(&b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", x, top, x, top+chartHeight, gridColor)
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", x, top+chartHeight+12, axisColor, formatTick(maxVal*ratio))
	}
	fmt.Fprintf(&b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"1\"></line>", left, top, left, top+chartHeight, axisColor)

	for i, bar := range bars {
		rowTop := top + float64(i)*rowHeight
		label := template.HTMLEscapeString(bar.Label)
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", left-6, rowTop+rowHeight/2+3, axisColor, label)
		fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" aria-label=\"%s %s %.1f%%\"></rect>",
			left, rowTop+rowHeight*0.1, barLength(bar.Raw, scale), barHeight, rawColor, template.HTMLEscapeString(rawLabel), label, bar.Raw)
		fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" aria-label=\"%s %s %.1f%%\"></rect>",
			left, rowTop+rowHeight*0.1+barHeight, barLength(bar.Weighted, scale), barHeight, weightedColor, template.HTMLEscapeString(weightedLabel), label, bar.Weighted)
	}

	// Legend
	legendY := padding
	fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", left, legendY-8, rawColor)
	fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", left+14, legendY, axisColor, template.HTMLEscapeString(rawLabel))
	fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", left+90, legendY-8, weightedColor)
	fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", left+104, legendY, axisColor, template.HTMLEscapeString(weightedLabel))

	b.WriteString("</svg>")
	return b.String(), nil
}

func barLength(value, scale float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return value * scale
}

func positive(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func almostZero(v float64) bool {
	return math.Abs(v) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	if math.Abs(v-math.Round(v)) < 1e-9 {
		return fmt.Sprintf("%.0f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}
