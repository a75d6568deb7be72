// Package constraint holds the structured constraints parsed from a free-text
// refinement prompt.
package constraint

import (
	"fmt"
	"strings"
)

// Preference is a soft price direction without an explicit bound.
type Preference string

// Preference values.
const (
	None      Preference = ""
	Cheaper   Preference = "cheaper"
	Expensive Preference = "expensive"
)

// Intent classifies informational questions that short-circuit refinement.
type Intent string

// Intent values.
const (
	IntentFilter     Intent = "filter"
	IntentCount      Intent = "count"
	IntentPriceRange Intent = "price_range"
	IntentCategories Intent = "categories"
)

// Constraints is the structured form of one refinement prompt. Ephemeral per
// refinement call.
type Constraints struct {
	MinPrice      *float64
	MaxPrice      *float64
	Preference    Preference
	Category      string
	Colors        []string
	StyleKeywords []string
	Intent        Intent
}

// IsEmpty reports whether no filtering constraint was extracted.
func (c Constraints) IsEmpty() bool {
	return c.MinPrice == nil && c.MaxPrice == nil && c.Preference == None &&
		c.Category == "" && len(c.Colors) == 0 && len(c.StyleKeywords) == 0
}

// Informational reports whether the prompt asked a question about the current
// results instead of requesting a filter.
func (c Constraints) Informational() bool {
	return c.Intent != IntentFilter && c.Intent != ""
}

// Summary renders the constraints back to text. Re-extracting from the summary
// yields equivalent constraints (price bounds round-trip exactly).
func (c Constraints) Summary() string {
	var parts []string
	if c.MinPrice != nil && c.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("between $%.2f and $%.2f", *c.MinPrice, *c.MaxPrice))
	} else if c.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("under $%.2f", *c.MaxPrice))
	} else if c.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("over $%.2f", *c.MinPrice))
	}
	switch c.Preference {
	case Cheaper:
		parts = append(parts, "cheaper")
	case Expensive:
		parts = append(parts, "expensive")
	}
	if c.Category != "" {
		parts = append(parts, c.Category)
	}
	parts = append(parts, c.Colors...)
	parts = append(parts, c.StyleKeywords...)
	if len(parts) == 0 {
		return "no constraints"
	}
	return strings.Join(parts, " ")
}
