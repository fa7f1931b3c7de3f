package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceLow  SortKey = "priceLow"
	SortPriceHigh SortKey = "priceHigh"
	// SortPopular orders by stock on hand until real popularity data exists.
	SortPopular SortKey = "popular"
)

// ParseSortKey maps unknown or empty values to SortNewest.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortPriceLow, SortPriceHigh, SortPopular:
		return SortKey(s)
	default:
		return SortNewest
	}
}

type Query struct {
	Text     string
	Category string
	Sort     SortKey
}

// Filter applies the text and category filters of q and then sorts the
// result. The input slice is never modified. Equal elements keep their
// input order.
func Filter(products []domain.Product, q Query) []domain.Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if text != "" && !Matches(p, text) {
			continue
		}
		result = append(result, p)
	}

	slices.SortStableFunc(result, comparator(ParseSortKey(string(q.Sort))))
	return result
}

// Matches reports whether the lower-cased needle occurs in the product name,
// description or any tag, ignoring case.
func Matches(p domain.Product, needle string) bool {
	if strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func comparator(key SortKey) func(a, b domain.Product) int {
	switch key {
	case SortPriceLow:
		return func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) }
	case SortPriceHigh:
		return func(a, b domain.Product) int { return cmp.Compare(b.Price, a.Price) }
	case SortPopular:
		return func(a, b domain.Product) int { return cmp.Compare(b.Stock, a.Stock) }
	default:
		return func(a, b domain.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}
