// Package svg renders dependency-free SVG charts for distribution exports.
package svg

// Bar is one labelled row of a comparison chart.
type Bar struct {
	Label    string
	Raw      float64
	Weighted float64
}

// Opts customises the share chart renderer.
type Opts struct {
	Title         string
	Description   string
	RawLabel      string
	WeightedLabel string
	RawColor      string
	WeightedColor string
	AxisColor     string
	GridColor     string
	Padding       float64
	LabelWidth    float64
	RowHeight     float64
	TickCount     int
}

// Defaults for the share charts.
const (
	DefaultWidth      = 720
	DefaultPadding    = 24.0
	DefaultLabelWidth = 140.0
	DefaultRowHeight  = 22.0
	DefaultTicks      = 5
)
