package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/cart"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the product store as seen by the order engine.
type Catalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

type CartStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// StockObserver is told which products had their stock changed after commit.
type StockObserver interface {
	InvalidateProducts(ctx context.Context, ids ...uuid.UUID)
}

type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, in PlaceOrderInput) (*Order, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, pg utils.Pagination) (*Page, error)

	AdminListOrders(ctx context.Context, f AdminFilter) (*Page, error)
	AdminGetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	AdminUpdateStatus(ctx context.Context, orderID uuid.UUID, to Status) (*Order, error)
}

type Deps struct {
	Repo    Repository
	Catalog Catalog
	Carts   CartStore
	Tx      db.TxManager
	Events  events.Publisher
	Stock   StockObserver
	Metrics *metrics.Registry
	Now     func() time.Time
}

type nopStockObserver struct{}

func (nopStockObserver) InvalidateProducts(context.Context, ...uuid.UUID) {}

type service struct {
	repo    Repository
	catalog Catalog
	carts   CartStore
	tx      db.TxManager
	events  events.Publisher
	stock   StockObserver
	metrics *metrics.Registry
	now     func() time.Time
}

func NewService(d Deps) Service {
	s := &service{
		repo:    d.Repo,
		catalog: d.Catalog,
		carts:   d.Carts,
		tx:      d.Tx,
		events:  d.Events,
		stock:   d.Stock,
		metrics: d.Metrics,
		now:     d.Now,
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.stock == nil {
		s.stock = nopStockObserver{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// PlaceOrder converts the caller's cart into an order. Every stock decrement,
// the order insert and the cart truncation share one transaction: any failure
// leaves stock and cart exactly as they were.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, in PlaceOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PlaceOrder"),
		zap.String("user_id", userID.String()),
	)
	timer := metrics.StartTimer()
	defer s.metrics.Observe(metrics.PlaceOrderLatency, timer)

	var placed *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetByUser(ctx, userID)
		if err != nil {
			return apperror.Internal(err)
		}
		if c.IsEmpty() {
			return apperror.Wrap(apperror.KindValidation, "Cart is empty", ErrCartEmpty)
		}

		now := s.now()
		o := &Order{
			ID:              uuid.New(),
			OrderNumber:     utils.GenerateOrderNumber(now),
			UserID:          userID,
			Status:          StatusPending,
			PaymentStatus:   PaymentPending,
			ShippingAddress: in.ShippingAddress.WithDefaults(),
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		for _, line := range c.Items {
			item, err := s.reserve(ctx, line)
			if err != nil {
				return err
			}
			o.Items = append(o.Items, item)
		}
		o.TotalAmount = SumSubtotals(o.Items)

		if err := s.repo.Create(ctx, o); err != nil {
			return apperror.Internal(err)
		}
		if err := s.carts.Clear(ctx, userID); err != nil {
			return apperror.Internal(err)
		}

		placed = o
		return nil
	})
	if err != nil {
		s.metrics.Inc(metrics.OrdersRejected)
		if apperror.KindOf(err) == apperror.KindInternal {
			log.Error("failed to place order", zap.Error(err))
		} else {
			log.Warn("order rejected", zap.String("reason", apperror.MessageOf(err)))
		}
		return nil, err
	}

	s.metrics.Inc(metrics.OrdersPlaced)
	s.stock.InvalidateProducts(ctx, productIDs(placed.Items)...)
	s.publish(ctx, events.OrderPlaced, placed)

	log.Info("order placed",
		zap.String("order_id", placed.ID.String()),
		zap.String("order_number", placed.OrderNumber),
		zap.Float64("total", placed.TotalAmount),
	)
	return placed, nil
}

// reserve validates one cart line against the live catalog and takes its
// quantity out of stock. The order line is priced at the current effective
// price, not the cart snapshot.
func (s *service) reserve(ctx context.Context, line cart.Item) (Item, error) {
	p, err := s.catalog.GetByID(ctx, line.ProductID)
	if err != nil {
		return Item{}, apperror.Internal(err)
	}
	if p == nil || !p.IsActive {
		return Item{}, unavailable(line.ProductName)
	}
	if p.Stock < line.Quantity {
		return Item{}, insufficient(p.Name, p.Stock)
	}

	if err := s.catalog.AdjustStock(ctx, p.ID, -line.Quantity); err != nil {
		switch {
		case errors.Is(err, product.ErrInsufficientStock):
			// lost a race with a concurrent placement; report what is left
			if fresh, ferr := s.catalog.GetByID(ctx, p.ID); ferr == nil && fresh != nil {
				return Item{}, insufficient(p.Name, fresh.Stock)
			}
			return Item{}, insufficient(p.Name, 0)
		case errors.Is(err, product.ErrProductNotFound):
			return Item{}, unavailable(p.Name)
		}
		return Item{}, apperror.Internal(err)
	}

	return newItem(p.ID, p.Name, p.SKU, line.Quantity, p.EffectivePrice()), nil
}

func unavailable(name string) error {
	return apperror.Conflict(fmt.Sprintf(`Product "%s" is no longer available`, name), ErrProductUnavail)
}

func insufficient(name string, available int) error {
	return apperror.Conflict(
		fmt.Sprintf(`Insufficient stock for "%s". Available: %d`, name, available),
		product.ErrInsufficientStock,
	)
}

// CancelOrder cancels one of the caller's orders and puts its quantities back
// in stock. Payment status is left as is.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CancelOrder"),
		zap.String("user_id", userID.String()),
		zap.String("order_id", orderID.String()),
	)

	var cancelled *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUser(ctx, orderID, userID)
		if err != nil {
			return apperror.Internal(err)
		}
		if o == nil {
			return errOrderNotFound()
		}

		cancelled, err = s.cancelLocked(ctx, o)
		return err
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			log.Error("failed to cancel order", zap.Error(err))
		} else {
			log.Warn("cancel rejected", zap.String("reason", apperror.MessageOf(err)))
		}
		return nil, err
	}

	s.afterCancel(ctx, cancelled)
	log.Info("order cancelled")
	return cancelled, nil
}

// cancelLocked restores stock and flips the status. It must run inside the
// transaction that loaded o.
func (s *service) cancelLocked(ctx context.Context, o *Order) (*Order, error) {
	if !o.Status.Cancellable() {
		return nil, apperror.Conflict(
			fmt.Sprintf(`Cannot cancel an order with status "%s"`, o.Status),
			ValidateTransition(o.Status, StatusCancelled),
		)
	}

	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		err := s.catalog.AdjustStock(ctx, *it.ProductID, it.Quantity)
		if errors.Is(err, product.ErrProductNotFound) {
			logger.FromCtx(ctx).Warn("skipping stock restore for deleted product",
				zap.String("order_id", o.ID.String()),
				zap.String("product_id", it.ProductID.String()),
				zap.Int("quantity", it.Quantity),
			)
			continue
		}
		if err != nil {
			return nil, apperror.Internal(err)
		}
	}

	if err := s.repo.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, apperror.Conflict("Order was modified concurrently, please retry", err)
		}
		return nil, apperror.Internal(err)
	}

	o.Status = StatusCancelled
	o.UpdatedAt = s.now()
	return o, nil
}

func (s *service) afterCancel(ctx context.Context, o *Order) {
	s.metrics.Inc(metrics.OrdersCancelled)
	s.stock.InvalidateProducts(ctx, productIDs(o.Items)...)
	s.publish(ctx, events.OrderCancelled, o)
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if o == nil {
		return nil, errOrderNotFound()
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, pg utils.Pagination) (*Page, error) {
	pg = pg.Normalize(10, 100)
	return s.list(ctx, pg, ListFilter{UserID: &userID})
}

func (s *service) AdminListOrders(ctx context.Context, f AdminFilter) (*Page, error) {
	pg := f.Pagination.Normalize(20, 100)
	return s.list(ctx, pg, ListFilter{Status: f.Status, PaymentStatus: f.PaymentStatus})
}

func (s *service) list(ctx context.Context, pg utils.Pagination, f ListFilter) (*Page, error) {
	f.Limit, f.Offset = pg.Limit, pg.Offset()

	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list orders", zap.String("layer", "service"), zap.Error(err))
		return nil, apperror.Internal(err)
	}
	return &Page{Items: orders, PageInfo: utils.NewPageInfo(pg, total)}, nil
}

func (s *service) AdminGetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if o == nil {
		return nil, errOrderNotFound()
	}
	return o, nil
}

// AdminUpdateStatus advances fulfillment through the transition table.
// Moving to cancelled goes through the same stock restoration as a customer
// cancellation.
func (s *service) AdminUpdateStatus(ctx context.Context, orderID uuid.UUID, to Status) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AdminUpdateStatus"),
		zap.String("order_id", orderID.String()),
		zap.String("to", string(to)),
	)

	if !to.Valid() {
		return nil, apperror.Validation(fmt.Sprintf(`Invalid status "%s"`, to))
	}

	var updated *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return apperror.Internal(err)
		}
		if o == nil {
			return errOrderNotFound()
		}

		if to == StatusCancelled {
			updated, err = s.cancelLocked(ctx, o)
			return err
		}

		if err := ValidateTransition(o.Status, to); err != nil {
			return apperror.Conflict(fmt.Sprintf(`Cannot change status from "%s" to "%s"`, o.Status, to), err)
		}
		if err := s.repo.UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return apperror.Conflict("Order was modified concurrently, please retry", err)
			}
			return apperror.Internal(err)
		}
		o.Status = to
		o.UpdatedAt = s.now()
		updated = o
		return nil
	})
	if err != nil {
		log.Warn("status update rejected", zap.Error(err))
		return nil, err
	}

	if to == StatusCancelled {
		s.afterCancel(ctx, updated)
	} else {
		s.publish(ctx, events.OrderStatusChanged, updated)
	}
	log.Info("order status updated")
	return updated, nil
}

// publish is best effort: the order is already committed.
func (s *service) publish(ctx context.Context, t events.Type, o *Order) {
	err := s.events.Publish(ctx, events.Event{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Amount:        o.TotalAmount,
		OccurredAt:    s.now(),
	})
	if err != nil {
		s.metrics.Inc(metrics.EventsDropped)
		logger.FromCtx(ctx).Warn("failed to publish order event",
			zap.String("type", string(t)),
			zap.String("order_id", o.ID.String()),
			zap.Error(err),
		)
	}
}

func productIDs(items []Item) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if it.ProductID != nil {
			ids = append(ids, *it.ProductID)
		}
	}
	return ids
}

func errOrderNotFound() *apperror.Error {
	return apperror.Wrap(apperror.KindNotFound, "Order not found", ErrOrderNotFound)
}
