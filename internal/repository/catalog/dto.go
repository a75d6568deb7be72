package catalog

import (
	"strconv"

	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// buildHashFields converts a domain Item into a flat map[string]string for HSET.
func buildHashFields(item domcat.Item) map[string]string {
	return map[string]string{
		"name":        item.Name,
		"description": item.Description,
		"category":    item.Category,
		"price":       strconv.FormatFloat(item.Price, 'f', -1, 64),
		"image":       item.ImageRef,
	}
}

// parseHashFields converts a flat hash map back into a domain Item.
// A malformed price parses to zero rather than failing the whole read.
func parseHashFields(id string, m map[string]string) domcat.Item {
	price, _ := strconv.ParseFloat(m["price"], 64)
	return domcat.Item{
		ID:          id,
		Name:        m["name"],
		Description: m["description"],
		Category:    m["category"],
		Price:       price,
		ImageRef:    m["image"],
	}
}
