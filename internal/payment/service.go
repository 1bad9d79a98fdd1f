package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/order"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Simulate(ctx context.Context, userID uuid.UUID, in SimulateInput) (*Result, error)
	LatestForOrder(ctx context.Context, userID, orderID uuid.UUID) (*Payment, error)
	History(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error)
}

type Deps struct {
	Repo    Repository
	Orders  order.Repository
	Gateway Gateway
	Tx      db.TxManager
	Events  events.Publisher
	Metrics *metrics.Registry
	Now     func() time.Time
}

type service struct {
	repo    Repository
	orders  order.Repository
	gateway Gateway
	tx      db.TxManager
	events  events.Publisher
	metrics *metrics.Registry
	now     func() time.Time
}

func NewService(d Deps) Service {
	s := &service{
		repo:    d.Repo,
		orders:  d.Orders,
		gateway: d.Gateway,
		tx:      d.Tx,
		events:  d.Events,
		metrics: d.Metrics,
		now:     d.Now,
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Simulate charges the order total through the gateway and records the
// attempt. Both outcomes persist a payment row and point the order at it;
// only an approval advances fulfillment.
func (s *service) Simulate(ctx context.Context, userID uuid.UUID, in SimulateInput) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Simulate"),
		zap.String("user_id", userID.String()),
		zap.String("order_id", in.OrderID.String()),
	)

	if in.OrderID == uuid.Nil {
		return nil, apperror.Wrap(apperror.KindValidation, "orderId is required", ErrOrderIDRequired)
	}
	if in.Method == "" {
		in.Method = MethodCard
	}
	if !in.Method.Valid() {
		return nil, apperror.Wrap(apperror.KindValidation,
			fmt.Sprintf(`Invalid payment method "%s"`, in.Method), ErrInvalidMethod)
	}

	timer := metrics.StartTimer()
	defer s.metrics.Observe(metrics.PaymentLatency, timer)

	var (
		res *Result
		o   *order.Order
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForUser(ctx, in.OrderID, userID)
		if err != nil {
			return apperror.Internal(err)
		}
		if o == nil {
			return apperror.Wrap(apperror.KindNotFound, "Order not found", order.ErrOrderNotFound)
		}
		if o.PaymentStatus == order.PaymentPaid {
			return apperror.Conflict("Order has already been paid", ErrAlreadyPaid)
		}
		if o.Status == order.StatusCancelled {
			return apperror.Conflict("Cannot pay for a cancelled order", ErrOrderCancelled)
		}

		resp := s.gateway.Charge(ctx, in.Method, o.TotalAmount)

		now := s.now()
		p := &Payment{
			ID:              uuid.New(),
			OrderID:         o.ID,
			UserID:          userID,
			Amount:          o.TotalAmount,
			Method:          in.Method,
			Status:          StatusFailed,
			TransactionRef:  utils.GenerateTransactionRef(),
			GatewayResponse: resp,
			SimulatedAt:     now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if resp.Approved() {
			p.Status = StatusSuccess
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return apperror.Internal(err)
		}

		out := outcomeFor(o, p)
		if err := order.ValidatePaymentTransition(o.PaymentStatus, out.PaymentStatus); err != nil {
			return apperror.Conflict("Order cannot accept this payment", err)
		}
		if err := s.orders.ApplyPaymentOutcome(ctx, o.ID, o.PaymentStatus, out); err != nil {
			if errors.Is(err, order.ErrStaleStatus) {
				return apperror.Conflict("Order was modified concurrently, please retry", err)
			}
			return apperror.Internal(err)
		}
		o.PaymentStatus, o.Status, o.PaymentRef = out.PaymentStatus, out.Status, &p.ID

		res = &Result{
			TransactionRef:  p.TransactionRef,
			Amount:          p.Amount,
			Method:          p.Method,
			Status:          p.Status,
			OrderNumber:     o.OrderNumber,
			OrderStatus:     o.Status,
			PaymentStatus:   o.PaymentStatus,
			GatewayResponse: resp,
			Success:         p.Status == StatusSuccess,
		}
		return nil
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			log.Error("failed to simulate payment", zap.Error(err))
		} else {
			log.Warn("payment rejected", zap.String("reason", apperror.MessageOf(err)))
		}
		return nil, err
	}

	t := events.PaymentSucceeded
	if res.Success {
		s.metrics.Inc(metrics.PaymentsSucceeded)
	} else {
		t = events.PaymentFailed
		s.metrics.Inc(metrics.PaymentsFailed)
	}
	s.publish(ctx, t, o, res.TransactionRef)

	log.Info("payment simulated",
		zap.String("transaction_ref", res.TransactionRef),
		zap.String("status", string(res.Status)),
		zap.Float64("amount", res.Amount),
	)
	return res, nil
}

// outcomeFor maps a payment attempt onto the order. An approval moves a
// pending order to processing; a decline leaves fulfillment untouched.
func outcomeFor(o *order.Order, p *Payment) order.PaymentOutcome {
	out := order.PaymentOutcome{
		PaymentStatus: order.PaymentFailed,
		Status:        o.Status,
		PaymentRef:    p.ID,
	}
	if p.Status == StatusSuccess {
		out.PaymentStatus = order.PaymentPaid
		if order.CanTransition(o.Status, order.StatusProcessing) {
			out.Status = order.StatusProcessing
		}
	}
	return out
}

func (s *service) LatestForOrder(ctx context.Context, userID, orderID uuid.UUID) (*Payment, error) {
	o, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if o == nil {
		return nil, apperror.Wrap(apperror.KindNotFound, "Order not found", order.ErrOrderNotFound)
	}

	p, err := s.repo.LatestForOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if p == nil {
		return nil, apperror.NotFound("No payment record found for this order")
	}
	return p, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list payments", zap.String("layer", "service"), zap.Error(err))
		return nil, apperror.Internal(err)
	}
	return entries, nil
}

func (s *service) publish(ctx context.Context, t events.Type, o *order.Order, ref string) {
	err := s.events.Publish(ctx, events.Event{
		Type:           t,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		Amount:         o.TotalAmount,
		TransactionRef: ref,
		OccurredAt:     s.now(),
	})
	if err != nil {
		s.metrics.Inc(metrics.EventsDropped)
		logger.FromCtx(ctx).Warn("failed to publish payment event",
			zap.String("type", string(t)),
			zap.String("order_id", o.ID.String()),
			zap.Error(err),
		)
	}
}
