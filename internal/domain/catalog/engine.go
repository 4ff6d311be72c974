// Package catalog holds the pure filter and sort pipeline shared by every product source.
package catalog

import (
	"sort"
	"strings"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
)

// Apply runs text, marketplace, condition, category and price stages in that order,
// then sorts stably by filters.SortBy. The input slice is never modified.
func Apply(products []entity.Product, query string, filters entity.FilterConfig) []entity.Product {
	out := make([]entity.Product, 0, len(products))
	q := strings.ToLower(strings.TrimSpace(query))

	for _, p := range products {
		if !matchesText(p, q) {
			continue
		}
		if !filters.Includes(p.Marketplace) {
			continue
		}
		if filters.ConditionActive() && string(p.Condition) != filters.Condition {
			continue
		}
		if filters.CategoryActive() && !strings.EqualFold(p.Category, filters.Category) {
			continue
		}
		if !withinBounds(p.Price, filters.MinPrice, filters.MaxPrice) {
			continue
		}
		out = append(out, p)
	}

	sortProducts(out, filters.SortBy)
	return out
}

func matchesText(p entity.Product, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

func withinBounds(price float64, minPrice, maxPrice *float64) bool {
	if minPrice != nil && price < *minPrice {
		return false
	}
	if maxPrice != nil && price > *maxPrice {
		return false
	}
	return true
}

// sortProducts orders in place. Shipping text is compared lexicographically, so
// "10 days" sorts before "2 days"; newest and unknown keys keep source order.
func sortProducts(products []entity.Product, key entity.SortKey) {
	var less func(a, b entity.Product) bool
	switch key {
	case entity.SortPriceAsc:
		less = func(a, b entity.Product) bool { return a.Price < b.Price }
	case entity.SortPriceDesc:
		less = func(a, b entity.Product) bool { return a.Price > b.Price }
	case entity.SortRatingDesc:
		less = func(a, b entity.Product) bool { return a.Rating > b.Rating }
	case entity.SortShippingAsc:
		less = func(a, b entity.Product) bool { return a.ShippingEstimate < b.ShippingEstimate }
	default:
		return
	}
	sort.SliceStable(products, func(i, j int) bool {
		return less(products[i], products[j])
	})
}

// Categories returns the distinct non-empty category labels in first-seen order.
func Categories(products []entity.Product) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

const (
	fallbackMinPrice = 0
	fallbackMaxPrice = 1000
)

// PriceRange returns the lowest and highest price, or [0, 1000] for an empty list.
func PriceRange(products []entity.Product) (float64, float64) {
	if len(products) == 0 {
		return fallbackMinPrice, fallbackMaxPrice
	}
	lo, hi := products[0].Price, products[0].Price
	for _, p := range products[1:] {
		if p.Price < lo {
			lo = p.Price
		}
		if p.Price > hi {
			hi = p.Price
		}
	}
	return lo, hi
}

// Paginate applies offset and limit; a non-positive limit returns everything after offset.
func Paginate(products []entity.Product, page entity.Page) []entity.Product {
	if page.Offset >= len(products) {
		return []entity.Product{}
	}
	start := page.Offset
	if start < 0 {
		start = 0
	}
	end := len(products)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	return products[start:end]
}
