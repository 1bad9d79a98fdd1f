package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrProductUnavail    = errors.New("product is no longer available")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleStatus       = errors.New("order status changed concurrently")
)
