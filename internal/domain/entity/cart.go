package entity

import (
	"time"
)

type CartItem struct {
	Product  Product   `json:"product"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

func NewCartItem(product Product, quantity int, now time.Time) (*CartItem, error) {
	if product.ID == "" {
		return nil, ErrEmptyProductID
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &CartItem{Product: product, Quantity: quantity, AddedAt: now}, nil
}

func (i CartItem) Subtotal() float64 {
	return i.Product.Price * float64(i.Quantity)
}

// Cart keeps items in insertion order, at most one item per product ID.
type Cart struct {
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart() *Cart {
	return &Cart{
		Items:     make([]CartItem, 0),
		UpdatedAt: time.Now().UTC(),
	}
}

func (c *Cart) GetItem(productID string) (*CartItem, int) {
	for i, item := range c.Items {
		if item.Product.ID == productID {
			return &c.Items[i], i
		}
	}
	return nil, -1
}

func (c *Cart) AddItem(product Product, quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	item, _ := c.GetItem(product.ID)
	if item != nil {
		item.Quantity += quantity
	} else {
		newItem, err := NewCartItem(product, quantity, now)
		if err != nil {
			return err
		}
		c.Items = append(c.Items, *newItem)
	}
	c.UpdatedAt = now
	return nil
}

// UpdateItemQuantity sets the quantity; a non-positive value removes the item.
// It reports false when productID is not in the cart.
func (c *Cart) UpdateItemQuantity(productID string, newQuantity int, now time.Time) bool {
	item, index := c.GetItem(productID)
	if item == nil {
		return false
	}

	if newQuantity <= 0 {
		c.Items = append(c.Items[:index], c.Items[index+1:]...)
	} else {
		item.Quantity = newQuantity
	}
	c.UpdatedAt = now
	return true
}

func (c *Cart) RemoveItem(productID string, now time.Time) bool {
	_, index := c.GetItem(productID)
	if index == -1 {
		return false
	}

	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	c.UpdatedAt = now
	return true
}

func (c *Cart) Clear(now time.Time) {
	c.Items = make([]CartItem, 0)
	c.UpdatedAt = now
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) TotalPrice() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// ItemsByMarketplace groups items per marketplace keeping cart order inside each group.
func (c *Cart) ItemsByMarketplace() map[Marketplace][]CartItem {
	out := make(map[Marketplace][]CartItem)
	for _, item := range c.Items {
		out[item.Product.Marketplace] = append(out[item.Product.Marketplace], item)
	}
	return out
}

// Sanitize drops entries a well-formed cart can never hold: empty IDs, non-positive
// quantities and duplicates. It reports whether anything was dropped.
func (c *Cart) Sanitize() bool {
	seen := make(map[string]struct{}, len(c.Items))
	kept := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Product.ID == "" || item.Quantity <= 0 {
			continue
		}
		if _, dup := seen[item.Product.ID]; dup {
			continue
		}
		seen[item.Product.ID] = struct{}{}
		kept = append(kept, item)
	}
	dropped := len(kept) != len(c.Items)
	c.Items = kept
	return dropped
}

func (c *Cart) Clone() *Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return &Cart{Items: items, UpdatedAt: c.UpdatedAt}
}
