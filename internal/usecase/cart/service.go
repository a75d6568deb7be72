// Package cart analyzes a shopping cart: complementary-driven suggestions,
// rule-based bundle and volume pricing, and optimization tips.
package cart

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// Pricing rules. Bundle and volume percentages apply to the totals noted on
// each discount; shipping is flat below the free-shipping threshold.
const (
	clothingBundleRate    = 0.15
	accessoriesBundleRate = 0.10
	volumeRate            = 0.12

	bundleMinLines    = 2
	volumeMinQuantity = 3

	freeShippingThreshold = 75.0
	shippingFee           = 10.0

	suggestionsPerList = 3
	analyzedLines      = 2
)

// Line is one cart entry.
type Line struct {
	Item     domcat.Item
	Quantity int
}

// Discount is one applied price reduction.
type Discount struct {
	Kind        string
	Name        string
	Amount      float64
	Description string
}

// Pricing is the cart total breakdown.
type Pricing struct {
	OriginalTotal        float64
	Discounts            []Discount
	Savings              float64
	Shipping             float64
	FreeShippingEligible bool
	FinalTotal           float64
}

// Suggestion is one recommended addition with its justification.
type Suggestion struct {
	Item       domcat.Item
	Reason     string
	Confidence float64
}

// Tip is one cart optimization hint.
type Tip struct {
	Kind             string
	Message          string
	TargetAmount     float64
	PotentialSavings float64
}

// Analysis is the complete cart report.
type Analysis struct {
	FrequentlyBoughtTogether []Suggestion
	CompleteTheLook          []Suggestion
	Pricing                  Pricing
	Tips                     []Tip
}

// Service analyzes carts.
type Service struct {
	rec    Recommender
	logger *zap.Logger
}

// New creates a cart analysis service.
func New(rec Recommender, logger *zap.Logger) *Service {
	return &Service{rec: rec, logger: logger}
}

// Analyze builds the full cart report. Suggestion-source failures degrade to
// empty suggestion lists; pricing is always computed.
func (s *Service) Analyze(ctx context.Context, lines []Line) (Analysis, error) {
	var a Analysis
	if len(lines) == 0 {
		return a, nil
	}

	inCart := make(map[string]bool, len(lines))
	for _, l := range lines {
		inCart[l.Item.ID] = true
	}

	a.FrequentlyBoughtTogether = s.boughtTogether(ctx, lines, inCart)
	a.CompleteTheLook = s.completeTheLook(ctx, lines, inCart)
	a.Pricing = computePricing(lines)
	a.Tips = s.tips(ctx, lines, a.Pricing)
	return a, nil
}

// boughtTogether suggests complements of the first cart lines.
func (s *Service) boughtTogether(
	ctx context.Context, lines []Line, inCart map[string]bool,
) []Suggestion {
	var out []Suggestion
	seen := make(map[string]bool)
	for _, l := range firstLines(lines, analyzedLines) {
		comps, err := s.rec.Complementary(ctx, l.Item.ID, suggestionsPerList)
		if err != nil {
			s.logger.Warn("Complementary suggestions unavailable",
				zap.String("item_id", l.Item.ID), zap.Error(err))
			continue
		}
		for _, c := range comps {
			if inCart[c.ID] || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, Suggestion{
				Item:       c,
				Reason:     "Often bought with " + l.Item.Name,
				Confidence: 0.8,
			})
			if len(out) >= suggestionsPerList {
				return out
			}
		}
	}
	return out
}

// completeTheLook suggests similar items for the clothing lines in the cart.
func (s *Service) completeTheLook(
	ctx context.Context, lines []Line, inCart map[string]bool,
) []Suggestion {
	var clothing []Line
	for _, l := range lines {
		if isClothing(l.Item) {
			clothing = append(clothing, l)
		}
	}

	var out []Suggestion
	seen := make(map[string]bool)
	for _, l := range firstLines(clothing, analyzedLines) {
		recs, err := s.rec.SearchByItem(ctx, l.Item.ID, suggestionsPerList)
		if err != nil {
			s.logger.Warn("Similar-item suggestions unavailable",
				zap.String("item_id", l.Item.ID), zap.Error(err))
			continue
		}
		for _, r := range recs {
			if inCart[r.Item.ID] || seen[r.Item.ID] {
				continue
			}
			seen[r.Item.ID] = true
			out = append(out, Suggestion{
				Item:       r.Item,
				Reason:     "Completes your " + l.Item.Name,
				Confidence: 0.7,
			})
			if len(out) >= suggestionsPerList {
				return out
			}
		}
	}
	return out
}

func computePricing(lines []Line) Pricing {
	var p Pricing

	var clothingLines, accessoryLines int
	var accessoriesTotal float64
	totalQuantity := 0
	for _, l := range lines {
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		lineTotal := l.Item.Price * float64(qty)
		p.OriginalTotal += lineTotal
		totalQuantity += qty

		if isClothing(l.Item) {
			clothingLines++
		}
		if isAccessory(l.Item) {
			accessoryLines++
			accessoriesTotal += lineTotal
		}
	}

	if clothingLines >= bundleMinLines {
		p.Discounts = append(p.Discounts, Discount{
			Kind:        "bundle",
			Name:        "Complete Outfit Discount",
			Amount:      p.OriginalTotal * clothingBundleRate,
			Description: "15% off when you buy 2+ clothing items",
		})
	}
	if accessoryLines >= bundleMinLines {
		p.Discounts = append(p.Discounts, Discount{
			Kind:        "bundle",
			Name:        "Accessories Bundle",
			Amount:      accessoriesTotal * accessoriesBundleRate,
			Description: "10% off when you buy 2+ accessories",
		})
	}
	if totalQuantity >= volumeMinQuantity {
		p.Discounts = append(p.Discounts, Discount{
			Kind:        "volume",
			Name:        "Volume Discount",
			Amount:      p.OriginalTotal * volumeRate,
			Description: fmt.Sprintf("12%% off for buying %d items", totalQuantity),
		})
	}

	for _, d := range p.Discounts {
		p.Savings += d.Amount
	}

	subtotal := p.OriginalTotal - p.Savings
	if subtotal >= freeShippingThreshold {
		p.FreeShippingEligible = true
	} else {
		p.Shipping = shippingFee
	}

	p.FinalTotal = subtotal + p.Shipping
	if p.FinalTotal < 0 {
		p.FinalTotal = 0
	}
	return p
}

func (s *Service) tips(ctx context.Context, lines []Line, p Pricing) []Tip {
	var out []Tip

	subtotal := p.OriginalTotal - p.Savings
	if subtotal < freeShippingThreshold {
		needed := freeShippingThreshold - subtotal
		out = append(out, Tip{
			Kind:             "free_shipping",
			Message:          fmt.Sprintf("Add $%.2f more for free shipping (saves $%.0f)", needed, shippingFee),
			TargetAmount:     needed,
			PotentialSavings: shippingFee,
		})
	}

	// A single-item cart gets a bundle pitch built from its complements.
	if len(lines) == 1 {
		comps, err := s.rec.Complementary(ctx, lines[0].Item.ID, 2)
		if err != nil {
			s.logger.Warn("Bundle suggestion unavailable", zap.Error(err))
			return out
		}
		if len(comps) > 0 {
			bundle := lines[0].Item.Price
			for _, c := range comps {
				bundle += c.Price
			}
			out = append(out, Tip{
				Kind:             "bundle",
				Message:          "Complete the look and save 15%",
				TargetAmount:     bundle * (1 - clothingBundleRate),
				PotentialSavings: bundle * clothingBundleRate,
			})
		}
	}
	return out
}

func isClothing(item domcat.Item) bool {
	return strings.Contains(strings.ToLower(item.Category), "clothing")
}

func isAccessory(item domcat.Item) bool {
	cat := strings.ToLower(item.Category)
	return strings.Contains(cat, "accessories") || strings.Contains(cat, "shoes")
}

func firstLines(lines []Line, n int) []Line {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}
