package payment

import "errors"

var (
	ErrOrderIDRequired = errors.New("orderId is required")
	ErrInvalidMethod   = errors.New("invalid payment method")
	ErrAlreadyPaid     = errors.New("order has already been paid")
	ErrOrderCancelled  = errors.New("order is cancelled")
)
