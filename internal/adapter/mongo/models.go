package mongo

import (
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
)

type pricePointDocument struct {
	Date  time.Time `bson:"date"`
	Price float64   `bson:"price"`
}

type productDocument struct {
	ID               string               `bson:"_id"`
	Seq              int                  `bson:"seq"`
	Marketplace      string               `bson:"marketplace"`
	Title            string               `bson:"title"`
	Description      string               `bson:"description,omitempty"`
	Price            float64              `bson:"price"`
	OriginalPrice    *float64             `bson:"original_price,omitempty"`
	Currency         string               `bson:"currency"`
	Rating           float64              `bson:"rating"`
	RatingCount      int                  `bson:"rating_count"`
	Condition        string               `bson:"condition"`
	Category         string               `bson:"category"`
	ShippingEstimate string               `bson:"shipping_estimate"`
	ImageURL         string               `bson:"image_url,omitempty"`
	Images           []string             `bson:"images,omitempty"`
	ProductURL       string               `bson:"product_url,omitempty"`
	PriceHistory     []pricePointDocument `bson:"price_history,omitempty"`
}

func toProductDocument(p entity.Product, seq int) productDocument {
	doc := productDocument{
		ID:               p.ID,
		Seq:              seq,
		Marketplace:      string(p.Marketplace),
		Title:            p.Title,
		Description:      p.Description,
		Price:            p.Price,
		OriginalPrice:    p.OriginalPrice,
		Currency:         p.Currency,
		Rating:           p.Rating,
		RatingCount:      p.RatingCount,
		Condition:        string(p.Condition),
		Category:         p.Category,
		ShippingEstimate: p.ShippingEstimate,
		ImageURL:         p.ImageURL,
		Images:           p.Images,
		ProductURL:       p.ProductURL,
	}
	for _, pp := range p.PriceHistory {
		doc.PriceHistory = append(doc.PriceHistory, pricePointDocument{Date: pp.Date, Price: pp.Price})
	}
	return doc
}

func (d productDocument) toDomain() entity.Product {
	p := entity.Product{
		ID:               d.ID,
		Marketplace:      entity.Marketplace(d.Marketplace),
		Title:            d.Title,
		Description:      d.Description,
		Price:            d.Price,
		OriginalPrice:    d.OriginalPrice,
		Currency:         d.Currency,
		Rating:           d.Rating,
		RatingCount:      d.RatingCount,
		Condition:        entity.Condition(d.Condition),
		Category:         d.Category,
		ShippingEstimate: d.ShippingEstimate,
		ImageURL:         d.ImageURL,
		Images:           d.Images,
		ProductURL:       d.ProductURL,
	}
	for _, pp := range d.PriceHistory {
		p.PriceHistory = append(p.PriceHistory, entity.PricePoint{Date: pp.Date.UTC(), Price: pp.Price})
	}
	return p
}

type favoriteDocument struct {
	UserID    string    `bson:"user_id"`
	ProductID string    `bson:"product_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type priceSampleDocument struct {
	ProductID string    `bson:"product_id"`
	Date      time.Time `bson:"date"`
	Price     float64   `bson:"price"`
}

type alertDocument struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"user_id"`
	Email       string     `bson:"email,omitempty"`
	ProductID   string     `bson:"product_id"`
	Title       string     `bson:"title,omitempty"`
	TargetPrice float64    `bson:"target_price"`
	CreatedAt   time.Time  `bson:"created_at"`
	IsActive    bool       `bson:"is_active"`
	Triggered   bool       `bson:"triggered"`
	TriggeredAt *time.Time `bson:"triggered_at,omitempty"`
	LastChecked *time.Time `bson:"last_checked,omitempty"`
}

func toAlertDocument(a *entity.PriceAlert) alertDocument {
	return alertDocument{
		ID:          a.ID,
		UserID:      a.UserID,
		Email:       a.Email,
		ProductID:   a.ProductID,
		Title:       a.Title,
		TargetPrice: a.TargetPrice,
		CreatedAt:   a.CreatedAt,
		IsActive:    a.IsActive,
		Triggered:   a.Triggered,
		TriggeredAt: a.TriggeredAt,
		LastChecked: a.LastChecked,
	}
}

func (d alertDocument) toDomain() entity.PriceAlert {
	return entity.PriceAlert{
		ID:          d.ID,
		UserID:      d.UserID,
		Email:       d.Email,
		ProductID:   d.ProductID,
		Title:       d.Title,
		TargetPrice: d.TargetPrice,
		CreatedAt:   d.CreatedAt.UTC(),
		IsActive:    d.IsActive,
		Triggered:   d.Triggered,
		TriggeredAt: d.TriggeredAt,
		LastChecked: d.LastChecked,
	}
}
