package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"storefront-be/internal/utils"
)

const (
	gatewayName     = "SimPay v1.0"
	gatewayCurrency = "USD"
	gatewayApproved = "approved"
	gatewayDeclined = "declined"

	authCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Gateway charges an amount and reports the processor's verdict.
type Gateway interface {
	Charge(ctx context.Context, method Method, amount float64) GatewayResponse
}

// Simulator stands in for a card processor. It approves a charge with
// probability SuccessRate and never blocks.
type Simulator struct {
	SuccessRate float64
	// Float returns a value in [0, 1). Defaults to math/rand.
	Float func() float64
	Now   func() time.Time
}

func NewSimulator(successRate float64) *Simulator {
	return &Simulator{
		SuccessRate: successRate,
		Float:       rand.Float64,
		Now:         time.Now,
	}
}

func (s *Simulator) Charge(_ context.Context, method Method, amount float64) GatewayResponse {
	approved := s.Float() < s.SuccessRate

	resp := GatewayResponse{
		Gateway:        gatewayName,
		Method:         method,
		Amount:         amount,
		Currency:       gatewayCurrency,
		ProcessingTime: fmt.Sprintf("%dms", 100+int(s.Float()*300)),
		SimulatedAt:    s.Now().UTC().Format(time.RFC3339Nano),
	}
	if approved {
		code := utils.RandomString(8, authCodeAlphabet)
		resp.Status = gatewayApproved
		resp.Reason = "Transaction approved"
		resp.AuthCode = &code
	} else {
		resp.Status = gatewayDeclined
		resp.Reason = "Insufficient funds (simulated)"
	}
	return resp
}
