package scoring

import "github.com/shopsmarter/shopsmarter/internal/domain/attribute"

// demographic holds the include/conflict keyword sets for one gender+age pair.
// Conflict hits drive the gender term negative, not merely to zero.
type demographic struct {
	include  []string
	conflict []string
	penalty  float64
}

// demographicFor returns the keyword sets for a query's gender and age group,
// or ok=false when the pair has no keyword profile (treated as neutral).
func demographicFor(g attribute.Gender, a attribute.AgeGroup) (demographic, bool) {
	switch {
	case g == attribute.Men && a == attribute.Adult:
		return demographic{
			include:  []string{"men", "man", "male", "guys", "gentleman"},
			conflict: []string{"women", "woman", "female", "ladies", "girl", "infant", "baby", "kid", "child", "teen", "boy"},
			penalty:  -1.0,
		}, true
	case g == attribute.Women && a == attribute.Adult:
		return demographic{
			include:  []string{"women", "woman", "female", "ladies", "girl"},
			conflict: []string{"men", "man", "male", "guys", "infant", "baby", "kid", "child", "teen", "boy"},
			penalty:  -1.0,
		}, true
	case g == attribute.Kids:
		d := demographic{
			conflict: []string{"men", "man", "women", "woman", "adult"},
			penalty:  -0.8,
		}
		if a == attribute.Child || a == attribute.Teen {
			d.include = []string{"kids", "children", "child", "boy", "girl", "teen"}
		}
		return d, true
	}
	return demographic{}, false
}

// colorSynonyms maps each base color to its near-synonym family. A synonym
// hit scores below an exact primary match but above an accent match.
var colorSynonyms = map[string][]string{
	"yellow": {"mustard", "golden", "amber", "cream", "beige", "sand"},
	"red":    {"crimson", "maroon", "burgundy", "cherry", "rose", "coral"},
	"blue":   {"navy", "azure", "indigo", "cobalt", "teal", "turquoise"},
	"green":  {"forest", "lime", "olive", "emerald", "mint", "sage"},
	"black":  {"charcoal", "ebony", "jet", "onyx"},
	"white":  {"cream", "ivory", "pearl", "snow", "off-white"},
	"brown":  {"tan", "beige", "chocolate", "coffee", "camel", "khaki"},
	"gray":   {"grey", "silver", "charcoal", "slate"},
	"pink":   {"rose", "coral", "salmon", "blush", "magenta"},
	"purple": {"violet", "lavender", "plum", "magenta", "indigo"},
	"orange": {"tangerine", "coral", "peach", "amber", "rust"},
}

// SimilarColors returns the synonym family for a color, or nil.
func SimilarColors(color string) []string {
	return colorSynonyms[color]
}

// subcategoryTerms expands a subcategory into the keyword set used by the
// hard pre-filter. The expansion is deliberately wider than the near-synonym
// pairs used in scoring: the pre-filter may be looser, never stricter.
func subcategoryTerms(sub string) []string {
	switch sub {
	case "t-shirt":
		return []string{"t-shirt", "tshirt", "tee", "shirt", "top"}
	case "shirt":
		return []string{"shirt", "t-shirt", "polo", "top", "blouse"}
	case "dress":
		return []string{"dress", "gown", "frock"}
	case "pants":
		return []string{"pants", "trousers", "jeans"}
	default:
		return []string{sub}
	}
}
