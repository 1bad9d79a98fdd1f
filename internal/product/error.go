package product

import "errors"

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidPrice       = errors.New("price must not be negative")
	ErrInvalidDiscount    = errors.New("discount price must be lower than price")
	ErrInvalidStock       = errors.New("stock must not be negative")
	ErrDuplicateSKU       = errors.New("sku already exists")
	ErrDuplicateSlug      = errors.New("collection slug already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionInUse    = errors.New("collection still has products")
)
