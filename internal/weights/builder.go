package weights

// Builder assembles a Config fluently; errors surface from Build.
type Builder struct {
	cfg Config
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{
		RetailerWeights: map[string]float64{},
		CategoryWeights: map[string]float64{},
	}}
}

// Retailer sets a retailer weight.
func (b *Builder) Retailer(name string, weight float64) *Builder {
	b.cfg.RetailerWeights[name] = weight
	return b
}

// Category sets a category weight.
func (b *Builder) Category(name string, weight float64) *Builder {
	b.cfg.CategoryWeights[name] = weight
	return b
}

// Build validates the accumulated configuration.
func (b *Builder) Build() (*Table, error) {
	return New(b.cfg)
}
