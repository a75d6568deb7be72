package scoring

import (
	"github.com/shopsmarter/shopsmarter/internal/domain/attribute"
	"github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// Scope selects which item text fields a term group matches against.
type Scope int

// Scope values.
const (
	// ScopeNameDesc matches name and description.
	ScopeNameDesc Scope = iota
	// ScopeAnywhere additionally matches the category field.
	ScopeAnywhere
)

// TermGroup is one disjunctive clause of a predicate: at least one of Terms
// must occur within Scope.
type TermGroup struct {
	Terms []string
	Scope Scope
}

// Predicate is a conjunctive keyword filter usable as a catalog-query
// condition: every Require group must match, no Exclude term may occur in
// name or description. It is logically looser than the scorer, never
// stricter, so it can safely shrink the candidate set before scoring.
type Predicate struct {
	Require []TermGroup
	Exclude []string
}

// Empty reports whether the predicate imposes no conditions.
func (p Predicate) Empty() bool {
	return len(p.Require) == 0 && len(p.Exclude) == 0
}

// Matches evaluates the predicate against item text.
func (p Predicate) Matches(t catalog.ItemText) bool {
	for _, term := range p.Exclude {
		if t.NameOrDesc(term) {
			return false
		}
	}
	for _, group := range p.Require {
		matched := false
		for _, term := range group.Terms {
			if group.Scope == ScopeAnywhere && t.Anywhere(term) {
				matched = true
				break
			}
			if group.Scope == ScopeNameDesc && t.NameOrDesc(term) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Prefilter builds the hard pre-filter for a query record:
//
//   - demographics: require a gender keyword and the absence of all
//     conflicting-demographic keywords, when a person was detected;
//   - color: require a primary color, its synonyms when confidence is high
//     enough, and accent colors only when color confidence is low;
//   - category: require a main-category or expanded subcategory keyword.
func Prefilter(q attribute.Record) Predicate {
	var p Predicate

	if q.PersonDetected && q.Gender != attribute.Unisex {
		if d, ok := demographicFor(q.Gender, q.AgeGroup); ok {
			if len(d.include) > 0 {
				p.Require = append(p.Require, TermGroup{Terms: d.include})
			}
			p.Exclude = append(p.Exclude, d.conflict...)
		}
	}

	if q.ColorsKnown() {
		terms := make([]string, 0, len(q.PrimaryColors)*4)
		for _, color := range q.PrimaryColors {
			terms = append(terms, color)
			if q.ColorConfidence > 0.6 {
				terms = append(terms, SimilarColors(color)...)
			}
		}
		if q.ColorConfidence < 0.5 {
			accents := q.AccentColors
			if len(accents) > 2 {
				accents = accents[:2]
			}
			terms = append(terms, accents...)
		}
		p.Require = append(p.Require, TermGroup{Terms: terms})
	}

	if q.MainCategory != "" && q.MainCategory != "unknown" {
		terms := []string{q.MainCategory}
		if q.Subcategory != "" && q.Subcategory != "unknown" && q.Subcategory != "item" {
			terms = append(terms, subcategoryTerms(q.Subcategory)...)
		}
		p.Require = append(p.Require, TermGroup{Terms: terms, Scope: ScopeAnywhere})
	}

	return p
}
