package entity

import "errors"

var (
	ErrInvalidQuantity    = errors.New("cart item quantity must be positive")
	ErrEmptyProductID     = errors.New("product ID cannot be empty")
	ErrInvalidFilter      = errors.New("invalid filter parameters")
	ErrInvalidProduct     = errors.New("invalid product data")
	ErrInvalidTargetPrice = errors.New("alert target price must be positive")
	ErrUnauthenticated    = errors.New("operation requires an authenticated user")
)
