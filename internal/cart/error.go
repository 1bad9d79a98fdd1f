package cart

import "errors"

var (
	ErrInvalidQuantity  = errors.New("invalid cart quantity")
	ErrProductRequired  = errors.New("product id is required")
	ErrCartItemNotFound = errors.New("cart item not found")
)
