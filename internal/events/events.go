package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderCancelled     Type = "order.cancelled"
	OrderStatusChanged Type = "order.status_changed"
	PaymentSucceeded   Type = "payment.succeeded"
	PaymentFailed      Type = "payment.failed"
)

type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           Type      `json:"type"`
	OrderID        uuid.UUID `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	UserID         uuid.UUID `json:"userId"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"paymentStatus"`
	Amount         float64   `json:"amount"`
	TransactionRef string    `json:"transactionRef,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Publisher delivers lifecycle events after the owning transaction commits.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
