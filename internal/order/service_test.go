package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/events"
	"storefront-be/internal/metrics"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memStore
	publisher *recordingPublisher
	observer  *recordingObserver
	metrics   *metrics.Registry
	svc       Service
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemStore(),
		publisher: &recordingPublisher{},
		observer:  &recordingObserver{},
		metrics:   metrics.NewRegistry(),
	}
	f.svc = NewService(Deps{
		Repo:    memOrders{f.store},
		Catalog: f.store,
		Carts:   f.store,
		Tx:      f.store,
		Events:  f.publisher,
		Stock:   f.observer,
		Metrics: f.metrics,
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return f
}

func (f *fixture) pendingOrder(userID uuid.UUID, productID uuid.UUID, qty int, status Status, pay PaymentStatus) Order {
	pid := productID
	o := Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-TEST-0001",
		UserID:        userID,
		Items:         []Item{{ID: uuid.New(), ProductID: &pid, ProductName: "A", Quantity: qty, Price: 10, Subtotal: 10 * float64(qty)}},
		TotalAmount:   10 * float64(qty),
		Status:        status,
		PaymentStatus: pay,
	}
	f.store.putOrder(o)
	return o
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Two units of A", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10.00, 5)
		f.store.addToCart(userID, a, 2, 10.00)

		o, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{Notes: "leave at door"})
		require.NoError(t, err)

		assert.Equal(t, 20.00, o.TotalAmount)
		assert.Equal(t, 3, f.store.stock(a))
		c, _ := f.store.GetByUser(ctx, userID)
		assert.True(t, c.IsEmpty())

		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, PaymentPending, o.PaymentStatus)
		assert.Nil(t, o.PaymentRef)
		assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
		assert.Equal(t, "N/A", o.ShippingAddress.Street)
		assert.Equal(t, "leave at door", o.Notes)

		require.Len(t, o.Items, 1)
		assert.Equal(t, "A", o.Items[0].ProductName)
		assert.Equal(t, "SKU-A", o.Items[0].ProductSKU)
		assert.Equal(t, 20.00, o.Items[0].Subtotal)

		stored, _ := memOrders{f.store}.GetByID(ctx, o.ID)
		require.NotNil(t, stored)

		assert.Equal(t, []uuid.UUID{a}, f.observer.ids)
		require.Len(t, f.publisher.events, 1)
		assert.Equal(t, events.OrderPlaced, f.publisher.events[0].Type)
		assert.Equal(t, uint64(1), f.metrics.Snapshot().Counters[metrics.OrdersPlaced])
	})

	t.Run("Total equals sum of subtotals", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 19.99, 10)
		b := f.store.addProduct("B", 0.10, 10)
		c := f.store.addProduct("C", 3.33, 10)
		f.store.addToCart(userID, a, 3, 19.99)
		f.store.addToCart(userID, b, 7, 0.10)
		f.store.addToCart(userID, c, 1, 3.33)

		o, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		require.NoError(t, err)

		var sum float64
		for _, it := range o.Items {
			assert.Equal(t, round2(it.Price*float64(it.Quantity)), it.Subtotal)
			sum += it.Subtotal
		}
		assert.Equal(t, round2(sum), o.TotalAmount)
		assert.Equal(t, 64.0, o.TotalAmount)
	})

	t.Run("Prices at current effective price", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		discount := 7.5
		p := f.store.products[a]
		p.DiscountPrice = &discount
		f.store.products[a] = p
		f.store.addToCart(userID, a, 2, 12.00) // stale snapshot

		o, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		require.NoError(t, err)
		assert.Equal(t, 7.5, o.Items[0].Price)
		assert.Equal(t, 15.0, o.TotalAmount)
	})

	t.Run("Shipping address kept", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		f.store.addToCart(userID, a, 1, 10)

		o, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{
			ShippingAddress: &Address{FullName: "Ada Lovelace", Street: "1 Analytical Way", Country: "UK"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", o.ShippingAddress.FullName)
		assert.Equal(t, "N/A", o.ShippingAddress.Zip)
	})

	t.Run("Insufficient stock leaves stock and cart unchanged", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		b := f.store.addProduct("B", 4, 1)
		f.store.addToCart(userID, a, 2, 10)
		f.store.addToCart(userID, b, 3, 4)

		o, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		assert.Nil(t, o)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, `Insufficient stock for "B". Available: 1`, apperror.MessageOf(err))

		assert.Equal(t, 5, f.store.stock(a))
		assert.Equal(t, 1, f.store.stock(b))
		c, _ := f.store.GetByUser(ctx, userID)
		assert.Len(t, c.Items, 2)
		assert.Empty(t, f.store.orders)
		assert.Empty(t, f.publisher.events)
		assert.Equal(t, uint64(1), f.metrics.Snapshot().Counters[metrics.OrdersRejected])
	})

	t.Run("Inactive product", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		b := f.store.addProduct("B", 4, 9)
		f.store.addToCart(userID, a, 1, 10)
		f.store.addToCart(userID, b, 1, 4)
		p := f.store.products[b]
		p.IsActive = false
		f.store.products[b] = p

		_, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, `Product "B" is no longer available`, apperror.MessageOf(err))
		assert.ErrorIs(t, err, ErrProductUnavail)
		assert.Equal(t, 5, f.store.stock(a))
	})

	t.Run("Deleted product", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		f.store.addToCart(userID, a, 1, 10)
		delete(f.store.products, a)

		_, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, `Product "A" is no longer available`, apperror.MessageOf(err))
	})

	t.Run("Empty cart", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.PlaceOrder(ctx, uuid.New(), PlaceOrderInput{})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		assert.Equal(t, "Cart is empty", apperror.MessageOf(err))
		assert.ErrorIs(t, err, ErrCartEmpty)
	})

	t.Run("Persistence failure rolls back stock", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		f.store.addToCart(userID, a, 2, 10)
		f.store.createErr = errors.New("db down")

		_, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
		assert.Equal(t, 5, f.store.stock(a))
		c, _ := f.store.GetByUser(ctx, userID)
		assert.Len(t, c.Items, 1)
	})

	t.Run("Event failure does not fail placement", func(t *testing.T) {
		f := newFixture()
		f.publisher.err = errors.New("broker down")
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 5)
		f.store.addToCart(userID, a, 1, 10)

		_, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
		assert.NoError(t, err)
		assert.Equal(t, uint64(1), f.metrics.Snapshot().Counters[metrics.EventsDropped])
	})
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending order restores stock", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 3)
		o := f.pendingOrder(userID, a, 2, StatusPending, PaymentPending)

		got, err := f.svc.CancelOrder(ctx, userID, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		assert.Equal(t, 5, f.store.stock(a))
		assert.Equal(t, StatusCancelled, f.store.orders[o.ID].Status)
		assert.Equal(t, events.OrderCancelled, f.publisher.events[0].Type)
	})

	t.Run("Paid processing order keeps payment status", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 0)
		o := f.pendingOrder(userID, a, 4, StatusProcessing, PaymentPaid)

		got, err := f.svc.CancelOrder(ctx, userID, o.ID)
		require.NoError(t, err)
		assert.Equal(t, PaymentPaid, got.PaymentStatus)
		assert.Equal(t, PaymentPaid, f.store.orders[o.ID].PaymentStatus)
		assert.Equal(t, 4, f.store.stock(a))
	})

	for _, status := range []Status{StatusShipped, StatusDelivered, StatusCancelled} {
		t.Run("Rejects "+string(status), func(t *testing.T) {
			f := newFixture()
			userID := uuid.New()
			a := f.store.addProduct("A", 10, 3)
			o := f.pendingOrder(userID, a, 2, status, PaymentPaid)

			_, err := f.svc.CancelOrder(ctx, userID, o.ID)
			assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
			assert.Equal(t, `Cannot cancel an order with status "`+string(status)+`"`, apperror.MessageOf(err))
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, 3, f.store.stock(a))
			assert.Equal(t, status, f.store.orders[o.ID].Status)
		})
	}

	t.Run("Other user's order is not found", func(t *testing.T) {
		f := newFixture()
		a := f.store.addProduct("A", 10, 3)
		o := f.pendingOrder(uuid.New(), a, 2, StatusPending, PaymentPending)

		_, err := f.svc.CancelOrder(ctx, uuid.New(), o.ID)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
		assert.Equal(t, 3, f.store.stock(a))
	})

	t.Run("Deleted products are skipped", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		a := f.store.addProduct("A", 10, 1)
		gone := uuid.New()
		o := Order{
			ID:     uuid.New(),
			UserID: userID,
			Status: StatusPending,
			Items: []Item{
				{ProductID: &gone, ProductName: "Gone", Quantity: 5},
				{ProductID: nil, ProductName: "Detached", Quantity: 1},
				{ProductID: &a, ProductName: "A", Quantity: 2},
			},
		}
		f.store.putOrder(o)

		got, err := f.svc.CancelOrder(ctx, userID, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		assert.Equal(t, 3, f.store.stock(a))
	})
}

func TestAdminUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Processing to shipped", func(t *testing.T) {
		f := newFixture()
		a := f.store.addProduct("A", 10, 3)
		o := f.pendingOrder(uuid.New(), a, 1, StatusProcessing, PaymentPaid)

		got, err := f.svc.AdminUpdateStatus(ctx, o.ID, StatusShipped)
		require.NoError(t, err)
		assert.Equal(t, StatusShipped, got.Status)
		assert.Equal(t, events.OrderStatusChanged, f.publisher.events[0].Type)
	})

	t.Run("Skipping states is rejected", func(t *testing.T) {
		f := newFixture()
		a := f.store.addProduct("A", 10, 3)
		o := f.pendingOrder(uuid.New(), a, 1, StatusPending, PaymentPending)

		_, err := f.svc.AdminUpdateStatus(ctx, o.ID, StatusDelivered)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, StatusPending, f.store.orders[o.ID].Status)
	})

	t.Run("Cancel restores stock", func(t *testing.T) {
		f := newFixture()
		a := f.store.addProduct("A", 10, 3)
		o := f.pendingOrder(uuid.New(), a, 2, StatusProcessing, PaymentPaid)

		_, err := f.svc.AdminUpdateStatus(ctx, o.ID, StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, 5, f.store.stock(a))
	})

	t.Run("Unknown status", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.AdminUpdateStatus(ctx, uuid.New(), Status("lost"))
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("Missing order", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.AdminUpdateStatus(ctx, uuid.New(), StatusShipped)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()
	a := f.store.addProduct("A", 10, 100)
	for i := 0; i < 12; i++ {
		f.pendingOrder(userID, a, 1, StatusPending, PaymentPending)
	}
	f.pendingOrder(uuid.New(), a, 1, StatusPending, PaymentPending)

	page, err := f.svc.ListOrders(ctx, userID, utils.Pagination{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 12, page.PageInfo.Total)
	assert.Equal(t, 2, page.PageInfo.TotalPages)

	paid := PaymentPaid
	adminPage, err := f.svc.AdminListOrders(ctx, AdminFilter{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Empty(t, adminPage.Items)
	assert.Equal(t, 20, adminPage.PageInfo.Limit)
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()
	a := f.store.addProduct("A", 10, 3)
	o := f.pendingOrder(owner, a, 1, StatusPending, PaymentPending)

	got, err := f.svc.GetOrder(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.GetOrder(ctx, uuid.New(), o.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err = f.svc.AdminGetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, got.UserID)
}
