package cart

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Cart struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a cart line. Price is the effective price captured when the line
// was added, not the live catalog price.
type Item struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
}

func (i Item) Subtotal() float64 {
	return round2(i.Price * float64(i.Quantity))
}

func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Subtotal()
	}
	return round2(total)
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Find returns the line holding productID, if any.
func (c *Cart) Find(productID uuid.UUID) (Item, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

type AddItemInput struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type UpdateItemInput struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
