package order

import (
	"fmt"
	"slices"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// statusTransitions lists the fulfillment states reachable from each state.
// delivered and cancelled are terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// paymentTransitions: a failed attempt may be retried; paid is terminal
// (no refund flow).
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentFailed:   {PaymentPaid, PaymentFailed},
	PaymentPaid:     {},
	PaymentRefunded: {},
}

func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func CanTransition(from, to Status) bool {
	return slices.Contains(statusTransitions[from], to)
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func ValidatePaymentTransition(from, to PaymentStatus) error {
	if !CanTransitionPayment(from, to) {
		return fmt.Errorf("%w: cannot transition payment from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Cancellable reports whether an order in s may still be cancelled.
func (s Status) Cancellable() bool {
	return CanTransition(s, StatusCancelled)
}
