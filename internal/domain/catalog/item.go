// Package catalog holds the catalog item value type. Items are owned by the
// external catalog store; the engine treats them as read-only text fields.
package catalog

import "strings"

// Item is one catalog product.
type Item struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       float64
	ImageRef    string
}

// Text returns the lowercased searchable fields of the item.
func (i Item) Text() ItemText {
	return ItemText{
		Name:        strings.ToLower(i.Name),
		Description: strings.ToLower(i.Description),
		Category:    strings.ToLower(i.Category),
	}
}

// ItemText is the lowercased text view the scorer and filters match against.
type ItemText struct {
	Name        string
	Description string
	Category    string
}

// NameOrDesc reports whether term occurs in the item name or description.
func (t ItemText) NameOrDesc(term string) bool {
	return strings.Contains(t.Name, term) || strings.Contains(t.Description, term)
}

// Anywhere reports whether term occurs in name, description or category.
func (t ItemText) Anywhere(term string) bool {
	return t.NameOrDesc(term) || strings.Contains(t.Category, term)
}

// Combined returns name, description and category joined for whole-text
// keyword matching.
func (t ItemText) Combined() string {
	return t.Name + " " + t.Description + " " + t.Category
}
