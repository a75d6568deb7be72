package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopsmarter/shopsmarter/internal/domain/attribute"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// complementarySpec is one "goes with" target: a keyword family and the
// share of the result page it may claim.
type complementarySpec struct {
	label    string
	keywords []string
	weight   float64
}

// specsFor classifies the source item by name keywords and returns its
// complement table. Order is significant: tops are checked before bottoms so
// "t-shirt" never falls through to the generic table.
func specsFor(name string) []complementarySpec {
	switch {
	case containsAnyTerm(name, "shirt", "t-shirt", "top", "blouse", "polo", "sweater", "hoodie", "jacket"):
		specs := []complementarySpec{
			{label: "bottoms", keywords: []string{"jeans", "pants", "trousers", "shorts"}, weight: 0.4},
			{label: "shoes", keywords: []string{"shoes", "sneakers", "boots", "sandals"}, weight: 0.3},
			{label: "accessories", keywords: []string{"bag", "handbag", "backpack", "wallet", "belt"}, weight: 0.2},
		}
		// A jacket does not complement another jacket.
		if !strings.Contains(name, "jacket") {
			specs = append(specs, complementarySpec{
				label: "outerwear", keywords: []string{"jacket", "coat", "blazer"}, weight: 0.1,
			})
		}
		return specs
	case containsAnyTerm(name, "jeans", "pants", "trousers", "shorts", "skirt"):
		return []complementarySpec{
			{label: "tops", keywords: []string{"shirt", "t-shirt", "top", "blouse", "polo"}, weight: 0.4},
			{label: "shoes", keywords: []string{"shoes", "sneakers", "boots", "sandals"}, weight: 0.3},
			{label: "accessories", keywords: []string{"belt", "bag", "handbag", "wallet"}, weight: 0.2},
			{label: "outerwear", keywords: []string{"jacket", "coat", "blazer"}, weight: 0.1},
		}
	case strings.Contains(name, "dress"):
		return []complementarySpec{
			{label: "shoes", keywords: []string{"shoes", "heels", "sandals", "boots"}, weight: 0.4},
			{label: "accessories", keywords: []string{"bag", "handbag", "purse", "clutch"}, weight: 0.3},
			{label: "jewelry", keywords: []string{"jewelry", "necklace", "earrings", "bracelet"}, weight: 0.2},
			{label: "outerwear", keywords: []string{"jacket", "cardigan", "blazer"}, weight: 0.1},
		}
	case containsAnyTerm(name, "shoes", "sneakers", "boots", "sandals", "heels"):
		return []complementarySpec{
			{label: "bottoms", keywords: []string{"jeans", "pants", "shorts"}, weight: 0.3},
			{label: "tops", keywords: []string{"shirt", "t-shirt", "top"}, weight: 0.3},
			{label: "accessories", keywords: []string{"bag", "backpack", "belt"}, weight: 0.2},
			{label: "socks", keywords: []string{"socks", "hosiery"}, weight: 0.2},
		}
	case containsAnyTerm(name, "bag", "handbag", "backpack", "purse", "wallet", "belt"):
		return []complementarySpec{
			{label: "clothing", keywords: []string{"shirt", "t-shirt", "dress", "top"}, weight: 0.4},
			{label: "shoes", keywords: []string{"shoes", "sneakers", "boots"}, weight: 0.3},
			{label: "accessories", keywords: []string{"jewelry", "watch", "sunglasses"}, weight: 0.2},
			{label: "bottoms", keywords: []string{"jeans", "pants"}, weight: 0.1},
		}
	case containsAnyTerm(name, "jewelry", "necklace", "earrings", "bracelet", "ring", "watch"):
		return []complementarySpec{
			{label: "dresses", keywords: []string{"dress", "gown"}, weight: 0.3},
			{label: "tops", keywords: []string{"blouse", "top", "shirt"}, weight: 0.3},
			{label: "bags", keywords: []string{"handbag", "purse", "clutch"}, weight: 0.2},
			{label: "shoes", keywords: []string{"heels", "sandals", "shoes"}, weight: 0.2},
		}
	}
	return []complementarySpec{
		{label: "bottoms", keywords: []string{"jeans", "pants"}, weight: 0.3},
		{label: "shoes", keywords: []string{"shoes", "sneakers"}, weight: 0.3},
		{label: "accessories", keywords: []string{"bag", "accessories"}, weight: 0.2},
		{label: "outerwear", keywords: []string{"jacket"}, weight: 0.2},
	}
}

var neutralColors = []string{"black", "white", "gray", "grey"}

var detectableColors = []string{
	"black", "white", "red", "blue", "green", "yellow", "pink",
	"purple", "brown", "gray", "grey", "orange", "navy",
}

// Complementary returns items that go with the source item: weighted
// complement categories under strict gender exclusivity, with matching and
// neutral colors preferred.
func (s *Service) Complementary(ctx context.Context, id string, limit int) ([]domcat.Item, error) {
	limit = clampLimit(limit)
	item, err := s.catalog.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup source item: %w", err)
	}

	t := item.Text()
	gender := genderContext(t)
	colors := detectColors(t.Name)

	seen := map[string]bool{item.ID: true}
	var picked []domcat.Item

	for _, spec := range specsFor(t.Name) {
		quota := int(float64(limit) * spec.weight)
		if quota < 1 {
			quota = 1
		}

		cands, err := s.catalog.Filter(ctx, func(c domcat.Item) bool {
			if c.ID == item.ID {
				return false
			}
			name := c.Text().Name
			return containsAnyTerm(name, spec.keywords...) && genderAllowed(gender, name)
		}, quota*2)
		if err != nil {
			return nil, fmt.Errorf("query %s complements: %w", spec.label, err)
		}

		for _, c := range preferColors(cands, colors, quota) {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			picked = append(picked, c)
		}
		if len(picked) >= limit {
			break
		}
	}

	if len(picked) == 0 {
		picked, err = s.complementaryFallback(ctx, item, gender, limit)
		if err != nil {
			return nil, err
		}
	}

	if len(picked) > limit {
		picked = picked[:limit]
	}
	return picked, nil
}

// complementaryFallback samples the catalog under the gender context,
// excluding infant wear, when no complement category produced anything.
func (s *Service) complementaryFallback(
	ctx context.Context, item domcat.Item, gender attribute.Gender, limit int,
) ([]domcat.Item, error) {
	sample, err := s.catalog.Sample(ctx, limit, func(c domcat.Item) bool {
		if c.ID == item.ID || isInfantItem(c) {
			return true
		}
		name := c.Text().Name
		switch gender {
		case attribute.Men:
			return !containsAnyTerm(name, "men", "male")
		case attribute.Women:
			return !containsAnyTerm(name, "women", "female")
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("complementary fallback: %w", err)
	}
	return sample, nil
}

// genderContext reads the demographic of the source item from its text.
// Women is checked first so "women" is never shadowed by its "men" substring.
func genderContext(t domcat.ItemText) attribute.Gender {
	combined := t.Name + " " + t.Description
	switch {
	case containsAnyTerm(combined, "women", "woman", "female", "ladies", "girl"):
		return attribute.Women
	case containsAnyTerm(combined, "men", "man", "male", "guys"):
		return attribute.Men
	case containsAnyTerm(combined, "kids", "children", "child", "teen"):
		return attribute.Kids
	}
	return attribute.Unisex
}

// genderAllowed applies the strict include/exclude rule to a candidate name.
func genderAllowed(gender attribute.Gender, name string) bool {
	switch gender {
	case attribute.Men:
		return containsAnyTerm(name, "men", "man", "male", "guys") &&
			!containsAnyTerm(name, "women", "female", "ladies", "girl")
	case attribute.Women:
		// Substring exclusion mirrors the scorer: "men" also hits inside
		// "women", so only "woman"/"ladies" phrasings survive the filter.
		return containsAnyTerm(name, "women", "woman", "female", "ladies") &&
			!containsAnyTerm(name, "men", "male", "guys")
	}
	return true
}

func detectColors(name string) []string {
	var out []string
	for _, color := range detectableColors {
		if strings.Contains(name, color) {
			out = append(out, color)
		}
	}
	return out
}

// preferColors orders candidates so those matching the source item's colors
// or a neutral color come first, then takes up to quota.
func preferColors(cands []domcat.Item, colors []string, quota int) []domcat.Item {
	if len(colors) == 0 || len(cands) == 0 {
		if len(cands) > quota {
			cands = cands[:quota]
		}
		return cands
	}

	preferred := append(append([]string{}, colors...), neutralColors...)
	matched := make([]domcat.Item, 0, len(cands))
	rest := make([]domcat.Item, 0, len(cands))
	for _, c := range cands {
		if containsAnyTerm(c.Text().Name, preferred...) {
			matched = append(matched, c)
		} else {
			rest = append(rest, c)
		}
	}

	out := append(matched, rest...)
	if len(out) > quota {
		out = out[:quota]
	}
	return out
}

func containsAnyTerm(s string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
