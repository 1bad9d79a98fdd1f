package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	SKU           string     `json:"sku"`
	Price         float64    `json:"price"`
	DiscountPrice *float64   `json:"discountPrice,omitempty"`
	Stock         int        `json:"stock"`
	IsActive      bool       `json:"isActive"`
	CollectionID  *uuid.UUID `json:"collectionId,omitempty"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// EffectivePrice is the discount price when present and lower than the list
// price, otherwise the list price.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice < p.Price {
		return *p.DiscountPrice
	}
	return p.Price
}

func (p *Product) Validate() error {
	switch {
	case p.Name == "":
		return ErrNameRequired
	case p.Price < 0:
		return ErrInvalidPrice
	case p.DiscountPrice != nil && (*p.DiscountPrice < 0 || *p.DiscountPrice >= p.Price):
		return ErrInvalidDiscount
	case p.Stock < 0:
		return ErrInvalidStock
	}
	return nil
}

type Collection struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NormalizeTags trims and lower-cases tags, dropping blanks and repeats.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

type ListFilter struct {
	CollectionID *uuid.UUID
	Search       string
	MinPrice     *float64
	MaxPrice     *float64
	OnlyActive   bool
	IsActive     *bool
	Limit        int
	Offset       int
}

type CreateProductInput struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	SKU           string     `json:"sku"`
	Price         float64    `json:"price"`
	DiscountPrice *float64   `json:"discountPrice"`
	Stock         int        `json:"stock"`
	IsActive      *bool      `json:"isActive"`
	CollectionID  *uuid.UUID `json:"collectionId"`
	Tags          []string   `json:"tags"`
}

type UpdateProductInput struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	SKU           *string    `json:"sku"`
	Price         *float64   `json:"price"`
	DiscountPrice *float64   `json:"discountPrice"`
	ClearDiscount bool       `json:"clearDiscount"`
	Stock         *int       `json:"stock"`
	IsActive      *bool      `json:"isActive"`
	CollectionID  *uuid.UUID `json:"collectionId"`
	Tags          []string   `json:"tags"`
}

type CreateCollectionInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type UpdateCollectionInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}
