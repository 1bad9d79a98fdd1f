package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"storefront-be/internal/order"

	"github.com/google/uuid"
)

type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodWallet       Method = "wallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodWallet:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Payment struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"orderId"`
	UserID          uuid.UUID       `json:"userId"`
	Amount          float64         `json:"amount"`
	Method          Method          `json:"method"`
	Status          Status          `json:"status"`
	TransactionRef  string          `json:"transactionRef"`
	GatewayResponse GatewayResponse `json:"gatewayResponse"`
	SimulatedAt     time.Time       `json:"simulatedAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// GatewayResponse is the raw processor payload, stored as JSONB.
type GatewayResponse struct {
	Gateway        string  `json:"gateway"`
	Method         Method  `json:"method"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	Reason         string  `json:"reason"`
	AuthCode       *string `json:"authCode"`
	ProcessingTime string  `json:"processingTime"`
	SimulatedAt    string  `json:"simulatedAt"`
}

func (g GatewayResponse) Approved() bool {
	return g.Status == gatewayApproved
}

func (g GatewayResponse) Value() (driver.Value, error) {
	return json.Marshal(g)
}

func (g *GatewayResponse) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*g = GatewayResponse{}
		return nil
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	default:
		return errors.New("payment: unsupported gateway_response type")
	}
}

// OrderSummary is the slice of the order shown next to a payment in history.
type OrderSummary struct {
	ID          uuid.UUID    `json:"id"`
	OrderNumber string       `json:"orderNumber"`
	TotalAmount float64      `json:"totalAmount"`
	Status      order.Status `json:"status"`
}

type HistoryEntry struct {
	Payment
	Order OrderSummary `json:"order"`
}

type SimulateInput struct {
	OrderID uuid.UUID `json:"orderId"`
	Method  Method    `json:"method"`
}

type Result struct {
	TransactionRef  string              `json:"transactionRef"`
	Amount          float64             `json:"amount"`
	Method          Method              `json:"method"`
	Status          Status              `json:"status"`
	OrderNumber     string              `json:"orderNumber"`
	OrderStatus     order.Status        `json:"orderStatus"`
	PaymentStatus   order.PaymentStatus `json:"paymentStatus"`
	GatewayResponse GatewayResponse     `json:"gatewayResponse"`
	Success         bool                `json:"-"`
}
