package entity

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Marketplace string

const (
	MarketplaceAmazon Marketplace = "amazon"
	MarketplaceEbay   Marketplace = "ebay"
)

// Marketplaces lists every supported marketplace in display order.
var Marketplaces = []Marketplace{MarketplaceAmazon, MarketplaceEbay}

// ParseMarketplace accepts both the lower-case tags and the legacy upper-case ones ("AMAZON").
func ParseMarketplace(s string) (Marketplace, error) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MarketplaceAmazon, MarketplaceEbay:
		return m, nil
	}
	return "", fmt.Errorf("unknown marketplace %q: %w", s, ErrInvalidFilter)
}

type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
)

const (
	MinRating = 0.0
	MaxRating = 5.0
)

type PricePoint struct {
	Date  time.Time `json:"date" bson:"date"`
	Price float64   `json:"price" bson:"price"`
}

type Product struct {
	ID               string       `json:"id"`
	Marketplace      Marketplace  `json:"marketplace"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Price            float64      `json:"price"`
	OriginalPrice    *float64     `json:"originalPrice,omitempty"`
	Currency         string       `json:"currency"`
	Rating           float64      `json:"rating"`
	RatingCount      int          `json:"ratingCount"`
	Condition        Condition    `json:"condition"`
	Category         string       `json:"category"`
	ShippingEstimate string       `json:"shippingEstimate"`
	ImageURL         string       `json:"imageUrl,omitempty"`
	Images           []string     `json:"images,omitempty"`
	ProductURL       string       `json:"productUrl,omitempty"`
	PriceHistory     []PricePoint `json:"priceHistory,omitempty"`
}

func (p Product) Validate() error {
	if p.ID == "" {
		return ErrEmptyProductID
	}
	if p.Price < 0 || math.IsNaN(p.Price) {
		return fmt.Errorf("product %s: price %v is negative: %w", p.ID, p.Price, ErrInvalidProduct)
	}
	if p.Rating < MinRating || p.Rating > MaxRating {
		return fmt.Errorf("product %s: rating %v outside [0,5]: %w", p.ID, p.Rating, ErrInvalidProduct)
	}
	for i := 1; i < len(p.PriceHistory); i++ {
		if p.PriceHistory[i].Date.Before(p.PriceHistory[i-1].Date) {
			return fmt.Errorf("product %s: price history is not chronological: %w", p.ID, ErrInvalidProduct)
		}
	}
	return nil
}

// DiscountPercent returns the rounded discount against OriginalPrice, or 0 when there is none.
func (p Product) DiscountPercent() int {
	if p.OriginalPrice == nil || *p.OriginalPrice <= 0 || *p.OriginalPrice <= p.Price {
		return 0
	}
	return int(math.Round((*p.OriginalPrice - p.Price) / *p.OriginalPrice * 100))
}

type QueryResult struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

type Page struct {
	Limit  int
	Offset int
}
