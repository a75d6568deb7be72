// Package refine turns free-text refinement prompts into structured
// constraints and applies them to a result list in a fixed precedence order.
package refine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopsmarter/shopsmarter/internal/domain/constraint"
)

// Price patterns. Ranges are checked first; a matched range claims both
// bounds and the under/over patterns are skipped.
var (
	rangeBetweenRe = regexp.MustCompile(`between\s+\$?(\d+(?:\.\d+)?)\s+and\s+\$?(\d+(?:\.\d+)?)`)
	rangeToRe      = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)(?:\s*dollars)?\s+to\s+\$?(\d+(?:\.\d+)?)(?:\s*dollars)?`)
	maxPriceRe     = regexp.MustCompile(`(?:under|below|less\s+than|max|up\s+to|at\s+most|cheaper\s+than)\s+\$?(\d+(?:\.\d+)?)`)
	minPriceRe     = regexp.MustCompile(`(?:over|above|more\s+than|min|at\s+least|minimum)\s+\$?(\d+(?:\.\d+)?)`)

	cheaperRe   = regexp.MustCompile(`\b(?:cheaper|cheap|budget|affordable)\b`)
	expensiveRe = regexp.MustCompile(`\b(?:expensive|premium|luxury|high[- ]end)\b`)
)

// categoryRule is one entry of the ordered category table. Extraction takes
// the first pattern match; filtering keeps items containing an include term
// and none of the exclude terms.
type categoryRule struct {
	name    string
	pattern *regexp.Regexp
	include []string
	exclude []string
}

// categoryRules is ordered specific-to-general: "t-shirt" must win over
// "shirt", and "shirt" over the generic clothing bucket. Patterns are
// word-bounded so "shirt" in a prompt never matches inside "t-shirt".
var categoryRules = []categoryRule{
	{
		name:    "t-shirt",
		pattern: regexp.MustCompile(`\bt[- ]?shirts?\b|\btees?\b`),
		include: []string{"t-shirt", "tshirt", "tee"},
	},
	{
		name:    "dress",
		pattern: regexp.MustCompile(`\bdress(?:es)?\b|\bgowns?\b`),
		include: []string{"dress", "gown"},
	},
	{
		name:    "jeans",
		pattern: regexp.MustCompile(`\bjeans\b|\bdenims?\b`),
		include: []string{"jeans", "denim"},
	},
	{
		name:    "pants",
		pattern: regexp.MustCompile(`\bpants\b|\btrousers\b`),
		include: []string{"pants", "trousers"},
	},
	{
		name:    "shorts",
		pattern: regexp.MustCompile(`\bshorts\b`),
		include: []string{"shorts"},
	},
	{
		name:    "skirt",
		pattern: regexp.MustCompile(`\bskirts?\b`),
		include: []string{"skirt"},
	},
	{
		name:    "jacket",
		pattern: regexp.MustCompile(`\bjackets?\b|\bcoats?\b|\bblazers?\b`),
		include: []string{"jacket", "coat", "blazer"},
	},
	{
		name:    "sweater",
		pattern: regexp.MustCompile(`\bsweaters?\b|\bhoodies?\b|\bcardigans?\b`),
		include: []string{"sweater", "hoodie", "cardigan"},
	},
	{
		name:    "shoes",
		pattern: regexp.MustCompile(`\bshoes?\b|\bsneakers?\b|\bboots?\b|\bheels?\b|\bsandals?\b`),
		include: []string{"shoe", "sneaker", "boot", "heel", "sandal"},
	},
	{
		name:    "hat",
		pattern: regexp.MustCompile(`\bhats?\b|\bcaps?\b|\bbeanies?\b`),
		include: []string{"hat", "cap", "beanie"},
	},
	{
		name:    "bag",
		pattern: regexp.MustCompile(`\bbags?\b|\bhandbags?\b|\bbackpacks?\b|\bpurses?\b`),
		include: []string{"bag", "handbag", "backpack", "purse"},
	},
	{
		name:    "socks",
		pattern: regexp.MustCompile(`\bsocks\b`),
		include: []string{"socks"},
	},
	{
		// After t-shirt: a plain "shirt" prompt excludes the t-shirt family.
		name:    "shirt",
		pattern: regexp.MustCompile(`\bshirts?\b|\bblouses?\b|\bpolos?\b`),
		include: []string{"shirt", "blouse", "polo"},
		exclude: []string{"t-shirt", "tshirt", "tee"},
	},
	{
		name:    "clothing",
		pattern: regexp.MustCompile(`\bclothing\b|\bclothes\b|\bapparel\b|\bwear\b`),
		include: []string{"clothing", "clothes", "apparel", "wear"},
	},
}

// colorVocabulary is the whole-word color set recognized in prompts.
var colorVocabulary = []string{
	"black", "white", "red", "blue", "green", "yellow", "pink", "purple",
	"brown", "gray", "grey", "orange", "navy", "maroon", "beige",
}

var colorRes = compileWordList(colorVocabulary)

// styleVocabulary covers soft style descriptors kept as lenient keywords.
var styleVocabulary = []string{
	"casual", "formal", "sporty", "elegant", "vintage", "modern", "classic",
}

var styleRes = compileWordList(styleVocabulary)

func compileWordList(words []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(words))
	for _, w := range words {
		out[w] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// Extract parses a refinement prompt into structured constraints. Pure and
// case-insensitive; rule order within a concern never depends on prompt order.
func Extract(prompt string) constraint.Constraints {
	text := strings.ToLower(strings.TrimSpace(prompt))
	var c constraint.Constraints
	c.Intent = detectIntent(text)

	extractPrices(text, &c)

	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			c.Category = rule.name
			break
		}
	}

	for _, color := range colorVocabulary {
		if colorRes[color].MatchString(text) {
			c.Colors = append(c.Colors, color)
		}
	}
	for _, style := range styleVocabulary {
		if styleRes[style].MatchString(text) {
			c.StyleKeywords = append(c.StyleKeywords, style)
		}
	}

	return c
}

func extractPrices(text string, c *constraint.Constraints) {
	if lo, hi, ok := matchRange(text); ok {
		c.MinPrice, c.MaxPrice = &lo, &hi
	} else {
		if m := maxPriceRe.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				c.MaxPrice = &v
			}
		}
		if m := minPriceRe.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				c.MinPrice = &v
			}
		}
	}

	// "cheaper than $N" is a price bound, not a preference.
	switch {
	case cheaperRe.MatchString(text) && !maxPriceRe.MatchString(text):
		c.Preference = constraint.Cheaper
	case expensiveRe.MatchString(text):
		c.Preference = constraint.Expensive
	}
}

func matchRange(text string) (lo, hi float64, ok bool) {
	m := rangeBetweenRe.FindStringSubmatch(text)
	if m == nil {
		m = rangeToRe.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, 0, false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[2], 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	if a > b {
		a, b = b, a
	}
	return a, b, true
}

func detectIntent(text string) constraint.Intent {
	switch {
	case strings.Contains(text, "how many"):
		return constraint.IntentCount
	case strings.Contains(text, "price range") ||
		strings.Contains(text, "cheapest") ||
		strings.Contains(text, "most expensive"):
		return constraint.IntentPriceRange
	case strings.Contains(text, "what categories") ||
		strings.Contains(text, "which categories"):
		return constraint.IntentCategories
	}
	return constraint.IntentFilter
}

// rulesFor returns the filter rule for an extracted category name.
func rulesFor(category string) (categoryRule, bool) {
	for _, rule := range categoryRules {
		if rule.name == category {
			return rule, true
		}
	}
	return categoryRule{}, false
}
