package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/catintel/catintel/internal/bucket"
)

// ErrMalformedInput is returned when the payload is neither a JSON array of
// products nor an object holding a "products" array.
var ErrMalformedInput = errors.New("catalog: input must be an array of products or an object with a products array")

type field struct {
	name    string
	aliases []string
}

// Earlier aliases take precedence when a listing carries several of them.
var (
	fieldRetailer = field{"retailer", []string{"retailer", "source"}}
	fieldSKU      = field{"sku", []string{"sku", "asin", "id"}}
	fieldName     = field{"name", []string{"name", "title", "product_name"}}
	fieldURL      = field{"url", []string{"url", "product_url"}}
	fieldPrice    = field{"price", []string{"price", "current_price"}}
	fieldRating   = field{"rating", []string{"rating", "avg_rating", "star_rating"}}
	fieldReviews  = field{"review_count", []string{"review_count", "reviews", "total_reviews"}}
	fieldCategory = field{"category", []string{"category", "taxonomy_path"}}
	fieldBrand    = field{"brand", []string{"brand"}}
	fieldMaterial = field{"material", []string{"material"}}
	fieldColor    = field{"color", []string{"color", "colour"}}
	fieldCapacity = field{"weight_capacity", []string{"weight_capacity", "max_load"}}
)

// Decoder turns scraped listings into Records.
type Decoder struct {
	classifier *bucket.Classifier
	retailer   string
	validate   *validator.Validate
}

// DecoderOption customises a Decoder.
type DecoderOption func(*Decoder)

// WithClassifier infers the category of listings that carry none.
func WithClassifier(c *bucket.Classifier) DecoderOption {
	return func(d *Decoder) { d.classifier = c }
}

// WithRetailer sets the retailer for listings that do not name one, which is
// the case for single-retailer scrape files.
func WithRetailer(name string) DecoderOption {
	return func(d *Decoder) { d.retailer = strings.TrimSpace(name) }
}

// NewDecoder constructs a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{validate: validator.New()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads listings with a default Decoder.
func Decode(r io.Reader) ([]Record, []Issue, error) {
	return NewDecoder().Decode(r)
}

// Decode parses the payload. Field level problems never fail the call; they
// are returned as issues and the affected field is left unset.
func (d *Decoder) Decode(r io.Reader) ([]Record, []Issue, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: read input: %w", err)
	}
	raw, err := splitListings(data)
	if err != nil {
		return nil, nil, err
	}
	records := make([]Record, 0, len(raw))
	var issues []Issue
	for i, obj := range raw {
		rec, recIssues := d.Listing(i, obj)
		records = append(records, rec)
		issues = append(issues, recIssues...)
	}
	return records, issues, nil
}

func splitListings(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	switch trimmed[0] {
	case '[':
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		return list, nil
	case '{':
		var wrapper struct {
			Products []map[string]any `json:"products"`
		}
		if err := dec.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		if wrapper.Products == nil {
			return nil, ErrMalformedInput
		}
		return wrapper.Products, nil
	default:
		return nil, ErrMalformedInput
	}
}

// Listing converts one raw listing at position index.
func (d *Decoder) Listing(index int, obj map[string]any) (Record, []Issue) {
	var issues []Issue
	rec := Record{
		Retailer: stringValue(lookup(obj, fieldRetailer)),
		SKU:      stringValue(lookup(obj, fieldSKU)),
		Name:     stringValue(lookup(obj, fieldName)),
		URL:      stringValue(lookup(obj, fieldURL)),
		Brand:    stringValue(lookup(obj, fieldBrand)),
	}
	if rec.Retailer == "" {
		rec.Retailer = d.retailer
	}
	if rec.Brand == "" {
		rec.Brand = UnknownBrand
	}
	report := func(f field, reason string) {
		issues = append(issues, Issue{Index: index, SKU: rec.SKU, Field: f.name, Reason: reason})
	}

	if v := lookup(obj, fieldPrice); v != nil {
		if price, ok := bucket.CoercePrice(v); ok {
			rec.Price = &price
		} else {
			report(fieldPrice, fmt.Sprintf("not a number: %v", v))
		}
	}
	if v := lookup(obj, fieldRating); v != nil {
		if rating, ok := leadingNumber(v); ok {
			rec.Rating = &rating
		} else {
			report(fieldRating, fmt.Sprintf("not a number: %v", v))
		}
	}
	if v := lookup(obj, fieldReviews); v != nil {
		if n, ok := leadingNumber(v); ok && n == math.Trunc(n) && n >= 0 && n <= math.MaxInt32 {
			rec.ReviewCount = int(n)
		} else {
			report(fieldReviews, fmt.Sprintf("not a whole number in range: %v", v))
		}
	}
	if v := lookup(obj, fieldCapacity); v != nil {
		if n, ok := leadingNumber(v); ok {
			rec.WeightCapacity = &n
		} else {
			report(fieldCapacity, fmt.Sprintf("not a number: %v", v))
		}
	}
	if s := stringValue(lookup(obj, fieldMaterial)); s != "" {
		rec.Material = &s
	}
	if s := stringValue(lookup(obj, fieldColor)); s != "" {
		rec.Color = &s
	}

	rec.Category = lastSegment(stringValue(lookup(obj, fieldCategory)))
	if rec.Category == "" && d.classifier != nil && rec.Name != "" {
		rec.Category = d.classifier.Classify(rec.Name)
		rec.CategoryInferred = true
	}

	rec, invalid := d.Check(index, rec)
	return rec, append(issues, invalid...)
}

// Check enforces the record invariants. Offending fields are cleared and
// reported; the record itself is kept.
func (d *Decoder) Check(index int, rec Record) (Record, []Issue) {
	err := d.validate.Struct(rec)
	if err == nil {
		return rec, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return rec, []Issue{{Index: index, SKU: rec.SKU, Field: "record", Reason: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issue := Issue{Index: index, SKU: rec.SKU, Reason: fmt.Sprintf("failed %s=%s (value %v)", fe.Tag(), fe.Param(), fe.Value())}
		switch fe.StructField() {
		case "Price":
			issue.Field = fieldPrice.name
			rec.Price = nil
		case "Rating":
			issue.Field = fieldRating.name
			rec.Rating = nil
		case "ReviewCount":
			issue.Field = fieldReviews.name
			rec.ReviewCount = 0
		case "WeightCapacity":
			issue.Field = fieldCapacity.name
			rec.WeightCapacity = nil
		default:
			issue.Field = fe.Field()
		}
		issues = append(issues, issue)
	}
	return rec, issues
}

// lookup returns the value of the first alias that is present and not null.
func lookup(obj map[string]any, f field) any {
	for _, key := range f.aliases {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// leadingNumber accepts numbers and strings such as "4.5 out of 5 stars" or
// "1,234 ratings".
func leadingNumber(v any) (float64, bool) {
	if n, ok := bucket.CoercePrice(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	return bucket.CoercePrice(fields[0])
}

// lastSegment resolves a taxonomy path such as "Home > Garage > Hooks" to its
// leaf.
func lastSegment(path string) string {
	if !strings.Contains(path, ">") {
		return path
	}
	parts := strings.Split(path, ">")
	for i := len(parts) - 1; i >= 0; i-- {
		if leaf := strings.TrimSpace(parts[i]); leaf != "" {
			return leaf
		}
	}
	return ""
}
