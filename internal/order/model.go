package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
	"time"

	"storefront-be/internal/utils"

	"github.com/google/uuid"
)

const addressPlaceholder = "N/A"

type Order struct {
	ID              uuid.UUID     `json:"id"`
	OrderNumber     string        `json:"orderNumber"`
	UserID          uuid.UUID     `json:"userId"`
	Items           []Item        `json:"items"`
	TotalAmount     float64       `json:"totalAmount"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	PaymentRef      *uuid.UUID    `json:"paymentRef,omitempty"`
	ShippingAddress Address       `json:"shippingAddress"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Item is a frozen copy of the product at placement time. ProductID is only
// kept for display and stock restoration; it becomes nil once the product is
// deleted.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   *uuid.UUID `json:"productId"`
	ProductName string     `json:"productName"`
	ProductSKU  string     `json:"productSku"`
	Quantity    int        `json:"quantity"`
	Price       float64    `json:"price"`
	Subtotal    float64    `json:"subtotal"`
}

func newItem(productID uuid.UUID, name, sku string, qty int, price float64) Item {
	return Item{
		ID:          uuid.New(),
		ProductID:   &productID,
		ProductName: name,
		ProductSKU:  sku,
		Quantity:    qty,
		Price:       price,
		Subtotal:    round2(price * float64(qty)),
	}
}

// SumSubtotals is the total an order must carry.
func SumSubtotals(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += it.Subtotal
	}
	return round2(total)
}

type Address struct {
	FullName string `json:"fullName"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// WithDefaults fills every empty field with the placeholder.
func (a *Address) WithDefaults() Address {
	var out Address
	if a != nil {
		out = *a
	}
	for _, f := range []*string{&out.FullName, &out.Street, &out.City, &out.State, &out.Zip, &out.Country} {
		if *f == "" {
			*f = addressPlaceholder
		}
	}
	return out
}

// Value stores the address as JSONB.
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("order: unsupported shipping_address type")
	}
}

type PlaceOrderInput struct {
	ShippingAddress *Address `json:"shippingAddress"`
	Notes           string   `json:"notes"`
}

type AdminFilter struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	utils.Pagination
}

// ListFilter is the repository-level query. A nil UserID lists every user's orders.
type ListFilter struct {
	UserID        *uuid.UUID
	Status        *Status
	PaymentStatus *PaymentStatus
	Limit         int
	Offset        int
}

// PaymentOutcome is the order-side effect of one payment attempt.
type PaymentOutcome struct {
	PaymentStatus PaymentStatus
	Status        Status
	PaymentRef    uuid.UUID
}

type Page struct {
	Items    []Order        `json:"items"`
	PageInfo utils.PageInfo `json:"pagination"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
