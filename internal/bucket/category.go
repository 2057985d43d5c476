package bucket

import (
	"strings"

	"golang.org/x/text/cases"
)

// Category labels produced by DefaultGroups.
const (
	CategoryWorkbenches = "Workbenches"
	CategoryCabinets    = "Cabinets"
	CategoryShelving    = "Shelving"
	CategoryBins        = "Bins & Containers"
	CategoryHooks       = "Hooks & Hangers"
	CategoryOther       = "Other"
)

// Group maps a set of keywords to a category label.
type Group struct {
	Label    string   `json:"label" toml:"label"`
	Keywords []string `json:"keywords" toml:"keywords"`
}

// DefaultGroups returns the garage-organisation taxonomy. Order is significant.
func DefaultGroups() []Group {
	return []Group{
		{Label: CategoryWorkbenches, Keywords: []string{"workbench"}},
		{Label: CategoryCabinets, Keywords: []string{"cabinet", "locker"}},
		{Label: CategoryShelving, Keywords: []string{"shelf", "shelving"}},
		{Label: CategoryBins, Keywords: []string{"bin", "container", "tote"}},
		{Label: CategoryHooks, Keywords: []string{"hook", "hanger"}},
	}
}

// Classifier assigns free-text product names to the first matching group.
type Classifier struct {
	groups   []Group
	folded   [][]string
	fallback string
}

// NewClassifier copies groups so later mutation by the caller has no effect.
// An empty fallback defaults to CategoryOther.
func NewClassifier(groups []Group, fallback string) *Classifier {
	if fallback == "" {
		fallback = CategoryOther
	}
	c := &Classifier{
		groups:   make([]Group, len(groups)),
		folded:   make([][]string, len(groups)),
		fallback: fallback,
	}
	for i, g := range groups {
		keywords := make([]string, 0, len(g.Keywords))
		for _, kw := range g.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, fold(kw))
			}
		}
		c.groups[i] = Group{Label: g.Label, Keywords: append([]string(nil), g.Keywords...)}
		c.folded[i] = keywords
	}
	return c
}

// DefaultClassifier returns a classifier over DefaultGroups.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultGroups(), CategoryOther)
}

// Classify returns the label of the first group with a keyword contained in text.
func (c *Classifier) Classify(text string) string {
	if c == nil {
		return CategoryOther
	}
	haystack := fold(text)
	for i, keywords := range c.folded {
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				return c.groups[i].Label
			}
		}
	}
	return c.fallback
}

// Labels lists the group labels in match order followed by the fallback.
func (c *Classifier) Labels() []string {
	if c == nil {
		return nil
	}
	labels := make([]string, 0, len(c.groups)+1)
	for _, g := range c.groups {
		labels = append(labels, g.Label)
	}
	return append(labels, c.fallback)
}

func fold(s string) string {
	return cases.Fold().String(s)
}
