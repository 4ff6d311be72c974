package entity

import (
	"time"

	"github.com/google/uuid"
)

type PriceAlert struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Email       string     `json:"email,omitempty"`
	ProductID   string     `json:"productId"`
	Title       string     `json:"title,omitempty"`
	TargetPrice float64    `json:"targetPrice"`
	CreatedAt   time.Time  `json:"createdAt"`
	IsActive    bool       `json:"isActive"`
	Triggered   bool       `json:"triggered"`
	TriggeredAt *time.Time `json:"triggeredAt,omitempty"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}

func NewPriceAlert(identity Identity, product Product, target float64, now time.Time) (*PriceAlert, error) {
	if !identity.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if product.ID == "" {
		return nil, ErrEmptyProductID
	}
	if target <= 0 {
		return nil, ErrInvalidTargetPrice
	}
	return &PriceAlert{
		ID:          uuid.NewString(),
		UserID:      identity.UserID,
		Email:       identity.Email,
		ProductID:   product.ID,
		Title:       product.Title,
		TargetPrice: target,
		CreatedAt:   now,
		IsActive:    true,
	}, nil
}

// ShouldTrigger reports whether price has reached the target of an armed alert.
func (a *PriceAlert) ShouldTrigger(price float64) bool {
	return a.IsActive && !a.Triggered && price <= a.TargetPrice
}

func (a *PriceAlert) MarkTriggered(now time.Time) {
	a.Triggered = true
	a.TriggeredAt = &now
	a.LastChecked = &now
}
