// Package attribute holds the structured attribute record describing a query
// or a catalog item: demographics, colors split into primary and accent,
// category hierarchy, and extraction confidence.
package attribute

import "strings"

// Gender is the demographic target of an item or query.
type Gender string

// Gender values. Anything else normalizes to Unisex.
const (
	Men    Gender = "men"
	Women  Gender = "women"
	Kids   Gender = "kids"
	Unisex Gender = "unisex"
)

// AgeGroup is the age bracket of an item or query.
type AgeGroup string

// AgeGroup values. Anything else normalizes to Adult.
const (
	Infant AgeGroup = "infant"
	Child  AgeGroup = "child"
	Teen   AgeGroup = "teen"
	Adult  AgeGroup = "adult"
)

// UnknownColor is the placeholder primary color when extraction failed.
// A record whose only primary color is UnknownColor is judged purely on
// demographics and category.
const UnknownColor = "unknown"

// BaseColors is the fixed vocabulary checked when deriving colors from item
// text. Order matters: the first color found in a name becomes the primary.
var BaseColors = []string{
	"black", "white", "red", "blue", "green", "yellow", "pink", "purple",
	"brown", "gray", "grey", "orange", "navy", "maroon",
}

// Record is a validated attribute set for one query or catalog item.
// Construct via Normalize (query boundary) or FromItemText (catalog text).
type Record struct {
	MainCategory    string
	Subcategory     string
	PrimaryColors   []string
	AccentColors    []string
	Patterns        []string
	Style           []string
	Material        string
	Brand           string
	Gender          Gender
	AgeGroup        AgeGroup
	PersonDetected  bool
	Confidence      float64
	ColorConfidence float64
}

// Normalize lowercases free-text fields, maps invalid enum values to safe
// defaults and guarantees the record invariants: PrimaryColors is non-empty
// and confidences are clamped to [0,1].
func (r Record) Normalize() Record {
	r.MainCategory = strings.ToLower(strings.TrimSpace(r.MainCategory))
	r.Subcategory = strings.ToLower(strings.TrimSpace(r.Subcategory))
	r.Material = strings.ToLower(strings.TrimSpace(r.Material))
	r.Brand = strings.ToLower(strings.TrimSpace(r.Brand))

	switch r.Gender {
	case Men, Women, Kids, Unisex:
	default:
		r.Gender = Unisex
	}
	switch r.AgeGroup {
	case Infant, Child, Teen, Adult:
	default:
		r.AgeGroup = Adult
	}

	r.PrimaryColors = lowerAll(r.PrimaryColors)
	r.AccentColors = lowerAll(r.AccentColors)
	if len(r.PrimaryColors) == 0 {
		r.PrimaryColors = []string{UnknownColor}
	}

	if r.Confidence < 0 {
		r.Confidence = 0
	} else if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.ColorConfidence <= 0 {
		r.ColorConfidence = 0.7
	} else if r.ColorConfidence > 1 {
		r.ColorConfidence = 1
	}
	return r
}

// ColorsKnown reports whether the record carries usable primary colors.
func (r Record) ColorsKnown() bool {
	return len(r.PrimaryColors) > 0 && !(len(r.PrimaryColors) == 1 && r.PrimaryColors[0] == UnknownColor)
}

// FromItemText re-derives an attribute record from a catalog item's text
// fields. Catalog items carry no structured attributes, so gender, age group,
// subcategory and colors are inferred from name and description at query time.
// The first base color found in the name is the primary; later name colors and
// description colors become accents, capped at two.
func FromItemText(name, description, category string) Record {
	name = strings.ToLower(name)
	description = strings.ToLower(description)
	category = strings.ToLower(category)
	combined := name + " " + description

	rec := Record{
		MainCategory:    "clothing",
		Subcategory:     "item",
		Patterns:        []string{"solid"},
		Style:           []string{"casual"},
		Material:        UnknownColor,
		Brand:           UnknownColor,
		Gender:          Unisex,
		AgeGroup:        Adult,
		Confidence:      0.5,
		ColorConfidence: 0.7,
	}

	switch {
	case containsAny(combined, "women", "woman", "female", "ladies", "girl"):
		rec.Gender = Women
	case containsAny(combined, "men", "man", "male", "guys"):
		rec.Gender = Men
	case containsAny(combined, "kids", "children", "child", "infant", "baby", "boy", "girl", "teen"):
		rec.Gender = Kids
		switch {
		case containsAny(name, "infant", "baby"):
			rec.AgeGroup = Infant
		case containsAny(name, "child", "kid"):
			rec.AgeGroup = Child
		case strings.Contains(name, "teen"):
			rec.AgeGroup = Teen
		}
	}

	switch {
	case containsAny(name, "t-shirt", "tshirt", "tee"):
		rec.Subcategory = "t-shirt"
	case containsAny(name, "shirt", "polo"):
		rec.Subcategory = "shirt"
	case strings.Contains(name, "dress"):
		rec.Subcategory = "dress"
	case containsAny(name, "pants", "jeans", "trouser"):
		rec.Subcategory = "pants"
	case containsAny(name, "shoe", "sneaker", "boot"):
		rec.Subcategory = "shoes"
		rec.MainCategory = "shoes"
	}
	if rec.MainCategory == "clothing" && category != "" && !strings.Contains(category, "clothing") {
		// trust an explicit non-clothing catalog category
		rec.MainCategory = category
	}

	var primary, accent []string
	for _, color := range BaseColors {
		switch {
		case strings.Contains(name, color):
			if len(primary) == 0 {
				primary = append(primary, color)
			} else {
				accent = append(accent, color)
			}
		case strings.Contains(description, color):
			accent = append(accent, color)
		}
	}
	if len(accent) > 2 {
		accent = accent[:2]
	}
	rec.PrimaryColors = primary
	rec.AccentColors = accent

	return rec.Normalize()
}

// PromptText renders the record as the text sent to the embedding provider.
func (r Record) PromptText() string {
	var parts []string

	switch {
	case r.Subcategory != "" && r.Subcategory != "item" && r.MainCategory != "":
		parts = append(parts, "A "+r.Subcategory+" from "+r.MainCategory+" category")
	case r.Subcategory != "" && r.Subcategory != "item":
		parts = append(parts, "A "+r.Subcategory)
	case r.MainCategory != "":
		parts = append(parts, "An item from "+r.MainCategory+" category")
	}

	if r.ColorsKnown() {
		parts = append(parts, "with "+strings.Join(r.PrimaryColors, " and ")+" colors")
	}
	if r.Material != "" && r.Material != UnknownColor {
		parts = append(parts, "made of "+r.Material)
	}
	if len(r.Patterns) > 0 {
		parts = append(parts, "with "+strings.Join(r.Patterns, " and ")+" patterns")
	}
	if len(r.Style) > 0 {
		parts = append(parts, "in "+strings.Join(r.Style, " and ")+" style")
	}
	if r.Brand != "" && r.Brand != UnknownColor {
		parts = append(parts, "from "+r.Brand+" brand")
	}

	if len(parts) == 0 {
		return "A product item"
	}
	return strings.Join(parts, " ")
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
