package annotate

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Category is a group of annotations that can be requested or skipped.
type Category string

// Annotation categories.
const (
	CategoryConsequenceType       Category = "consequenceType"
	CategoryVariation             Category = "variation"
	CategoryPopulationFrequencies Category = "populationFrequencies"
	CategoryConservation          Category = "conservation"
	CategoryFunctionalScore       Category = "functionalScore"
	CategoryClinical              Category = "clinical"
	CategoryExpression            Category = "expression"
	CategoryGeneDisease           Category = "geneDisease"
	CategoryDrugInteraction       Category = "drugInteraction"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryConsequenceType,
	CategoryVariation,
	CategoryPopulationFrequencies,
	CategoryConservation,
	CategoryFunctionalScore,
	CategoryClinical,
	CategoryExpression,
	CategoryGeneDisease,
	CategoryDrugInteraction,
}

// CategorySet is a set of requested categories.
type CategorySet map[Category]struct{}

// Has reports whether c is requested.
func (s CategorySet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the requested categories in display order.
func (s CategorySet) Sorted() []Category {
	return lo.Filter(AllCategories, func(c Category, _ int) bool { return s.Has(c) })
}

// ParseCategories parses a comma separated category list. Unknown names
// are an error.
func ParseCategories(list string) ([]Category, error) {
	var out []Category
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c := Category(name)
		if !lo.Contains(AllCategories, c) {
			return nil, fmt.Errorf("unknown annotation category %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}

// ResolveCategories returns the categories to run. A non-empty include
// list wins over exclude; with neither, every category runs.
func ResolveCategories(include, exclude []Category) CategorySet {
	selected := AllCategories
	switch {
	case len(include) > 0:
		selected = lo.Uniq(include)
	case len(exclude) > 0:
		selected = lo.Without(AllCategories, exclude...)
	}
	set := make(CategorySet, len(selected))
	for _, c := range selected {
		set[c] = struct{}{}
	}
	return set
}
