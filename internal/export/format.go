// Package export writes weighted distributions as CSV, XLSX or SVG.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strconv"
	"strings"

	"github.com/catintel/catintel/internal/aggregate"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("export: distribution has no entries")

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatSVG  Format = "svg"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatSVG:  "image/svg+xml",
}

func init() {
	for format, typ := range contentTypes {
		ensureMimeType(format.Extension(), typ)
	}
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Warn("export: register MIME type", slog.String("ext", ext), slog.Any("error", err))
	}
}

// ParseFormat accepts a format name, case-insensitively. An empty name is CSV.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatCSV, nil
	}
	if _, ok := contentTypes[f]; !ok {
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
	return f, nil
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type registered for the format.
func (f Format) ContentType() string {
	if typ := mime.TypeByExtension(f.Extension()); typ != "" {
		return typ
	}
	return contentTypes[f]
}

// Write renders result in format. SVG output charts the dimension named by
// chart, defaulting to the price distribution.
func Write(w io.Writer, format Format, result aggregate.Result, categories []aggregate.CategorySummary, chart aggregate.Dimension) error {
	switch format {
	case FormatCSV:
		return WriteDistributionsCSV(w, result.Distributions())
	case FormatXLSX:
		return WriteXLSX(w, result.Distributions(), categories)
	case FormatSVG:
		dist := result.Price
		for _, d := range result.Distributions() {
			if d.Dimension == chart {
				dist = d
			}
		}
		return WriteSVG(w, dist)
	default:
		return fmt.Errorf("export: unsupported format %q", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
