// Package scoring implements the attribute-aware relevance scorer and the
// hard pre-filter used to shrink catalog queries before scoring.
//
// The score is a weighted sum of four independent terms: demographics
// (gender + age), color (primary over accent), subcategory and main category.
// Demographic conflicts contribute a negative term; the total is clamped to
// [0,1] only at the very end, so a strong color match cannot hide a gender
// mismatch but the final score never goes below zero.
package scoring

import (
	"strings"

	"github.com/shopsmarter/shopsmarter/internal/domain/attribute"
	"github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// Weights holds the term weights and the acceptance threshold. The defaults
// are empirically chosen; they are configurable but have no derivation.
type Weights struct {
	Gender      float64 `yaml:"gender"`
	Color       float64 `yaml:"color"`
	Subcategory float64 `yaml:"subcategory"`
	Category    float64 `yaml:"category"`
	Threshold   float64 `yaml:"threshold"`
}

// DefaultWeights returns the standard weighting scheme. The four term weights
// sum to 1.0 when all signals are present.
func DefaultWeights() Weights {
	return Weights{
		Gender:      0.50,
		Color:       0.35,
		Subcategory: 0.10,
		Category:    0.05,
		Threshold:   0.6,
	}
}

// Scorer scores catalog item text against a query attribute record.
type Scorer struct {
	w Weights
}

// New creates a scorer. Zero-valued weights fall back to the defaults.
func New(w Weights) Scorer {
	if w.Gender == 0 && w.Color == 0 && w.Subcategory == 0 && w.Category == 0 {
		w = DefaultWeights()
	}
	return Scorer{w: w}
}

// Threshold returns the minimum acceptance score for ranked result lists.
func (s Scorer) Threshold() float64 { return s.w.Threshold }

// Score computes the bounded relevance of item text for a query record.
// The query must already be normalized.
func (s Scorer) Score(q attribute.Record, t catalog.ItemText) float64 {
	score := s.genderTerm(q, t)
	score += s.colorTerm(q, t)
	score += s.subcategoryTerm(q, t)
	score += s.categoryTerm(q, t)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// genderTerm scores the demographic match. Queries without a detected person
// or with unisex gender get a fixed neutral half-credit so gender-agnostic
// queries are not penalized. A conflicting-demographic keyword drives the
// term negative.
func (s Scorer) genderTerm(q attribute.Record, t catalog.ItemText) float64 {
	if !q.PersonDetected || q.Gender == attribute.Unisex {
		return s.w.Gender / 2
	}
	d, ok := demographicFor(q.Gender, q.AgeGroup)
	if !ok {
		return s.w.Gender / 2
	}

	component := 0.0
	for _, term := range d.include {
		if t.NameOrDesc(term) {
			component = 1.0
			break
		}
	}
	for _, term := range d.conflict {
		if t.NameOrDesc(term) {
			component = d.penalty
			break
		}
	}
	return component * s.w.Gender
}

// colorTerm scores the color hierarchy: exact primary (1.0) over primary
// synonym (0.8) over accent-only (0.3), scaled by the extraction confidence.
// Unknown-color queries skip the term entirely; the remaining weights are
// intentionally not renormalized.
func (s Scorer) colorTerm(q attribute.Record, t catalog.ItemText) float64 {
	if !q.ColorsKnown() {
		return 0
	}

	component := 0.0
	for _, color := range q.PrimaryColors {
		if t.NameOrDesc(color) {
			component = 1.0
			break
		}
	}
	if component == 0 {
	synonyms:
		for _, color := range q.PrimaryColors {
			for _, similar := range SimilarColors(color) {
				if t.NameOrDesc(similar) {
					component = 0.8
					break synonyms
				}
			}
		}
	}
	if component == 0 {
		for _, color := range q.AccentColors {
			if t.NameOrDesc(color) {
				component = 0.3
				break
			}
		}
	}

	return component * q.ColorConfidence * s.w.Color
}

func (s Scorer) subcategoryTerm(q attribute.Record, t catalog.ItemText) float64 {
	sub := q.Subcategory
	if sub == "" || sub == "unknown" || sub == "item" {
		return 0
	}

	component := 0.0
	switch {
	case strings.Contains(t.Name, sub) || strings.Contains(t.Category, sub):
		component = 1.0
	case sub == "t-shirt" && containsAnyOf(t.Name, "shirt", "top", "tee"):
		component = 0.9
	case sub == "shirt" && containsAnyOf(t.Name, "t-shirt", "polo", "top"):
		component = 0.9
	}
	return component * s.w.Subcategory
}

func (s Scorer) categoryTerm(q attribute.Record, t catalog.ItemText) float64 {
	main := q.MainCategory
	if main == "" || main == "unknown" {
		return 0
	}
	if strings.Contains(t.Category, main) || strings.Contains(t.Name, main) {
		return s.w.Category
	}
	return 0
}

func containsAnyOf(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
