package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/events"
	"storefront-be/internal/metrics"
	"storefront-be/internal/order"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p *Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) LatestForOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]HistoryEntry), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
	order.Repository
}

func (m *MockOrderRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, expected order.PaymentStatus, out order.PaymentOutcome) error {
	return m.Called(ctx, id, expected, out).Error(0)
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedGateway struct {
	approve bool
	calls   int
}

func (g *fixedGateway) Charge(_ context.Context, method Method, amount float64) GatewayResponse {
	g.calls++
	s := &Simulator{SuccessRate: 0, Float: func() float64 { return 0 }, Now: func() time.Time { return time.Time{} }}
	if g.approve {
		s.SuccessRate = 1
	}
	return s.Charge(context.Background(), method, amount)
}

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type harness struct {
	repo    *MockRepository
	orders  *MockOrderRepository
	gateway *fixedGateway
	pub     *capturePublisher
	metrics *metrics.Registry
	svc     Service
}

func newHarness(approve bool) *harness {
	h := &harness{
		repo:    new(MockRepository),
		orders:  new(MockOrderRepository),
		gateway: &fixedGateway{approve: approve},
		pub:     &capturePublisher{},
		metrics: metrics.NewRegistry(),
	}
	h.svc = NewService(Deps{
		Repo:    h.repo,
		Orders:  h.orders,
		Gateway: h.gateway,
		Tx:      passthroughTx{},
		Events:  h.pub,
		Metrics: h.metrics,
	})
	return h
}

func testOrder(userID uuid.UUID, status order.Status, pay order.PaymentStatus) *order.Order {
	return &order.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-TEST-0001",
		UserID:        userID,
		TotalAmount:   20.00,
		Status:        status,
		PaymentStatus: pay,
	}
}

func TestService_Simulate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Forced success pays and advances the order", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusPending, order.PaymentPending)

		var saved *Payment
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*Payment) }).
			Return(nil)
		h.orders.On("ApplyPaymentOutcome", mock.Anything, o.ID, order.PaymentPending,
			mock.MatchedBy(func(out order.PaymentOutcome) bool {
				return out.PaymentStatus == order.PaymentPaid &&
					out.Status == order.StatusProcessing &&
					out.PaymentRef == saved.ID
			})).Return(nil)

		res, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID})
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.Equal(t, 20.00, saved.Amount)
		assert.Equal(t, StatusSuccess, saved.Status)
		assert.Equal(t, MethodCard, saved.Method)
		assert.Equal(t, userID, saved.UserID)
		assert.Regexp(t, `^TXN-[0-9A-F-]{36}$`, saved.TransactionRef)

		assert.True(t, res.Success)
		assert.Equal(t, order.PaymentPaid, res.PaymentStatus)
		assert.Equal(t, order.StatusProcessing, res.OrderStatus)
		assert.Equal(t, "ORD-TEST-0001", res.OrderNumber)
		assert.Equal(t, saved.TransactionRef, res.TransactionRef)
		require.NotNil(t, o.PaymentRef)
		assert.Equal(t, saved.ID, *o.PaymentRef)

		require.Len(t, h.pub.events, 1)
		assert.Equal(t, events.PaymentSucceeded, h.pub.events[0].Type)
		assert.Equal(t, uint64(1), h.metrics.Snapshot().Counters[metrics.PaymentsSucceeded])
		h.orders.AssertExpectations(t)
		h.repo.AssertExpectations(t)
	})

	t.Run("Forced failure records attempt and keeps status", func(t *testing.T) {
		h := newHarness(false)
		o := testOrder(userID, order.StatusPending, order.PaymentPending)

		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)
		h.orders.On("ApplyPaymentOutcome", mock.Anything, o.ID, order.PaymentPending,
			mock.MatchedBy(func(out order.PaymentOutcome) bool {
				return out.PaymentStatus == order.PaymentFailed &&
					out.Status == order.StatusPending &&
					out.PaymentRef != uuid.Nil
			})).Return(nil)

		res, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID, Method: MethodBankTransfer})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, MethodBankTransfer, res.Method)
		assert.Equal(t, order.PaymentFailed, res.PaymentStatus)
		assert.Equal(t, order.StatusPending, res.OrderStatus)
		assert.Nil(t, res.GatewayResponse.AuthCode)
		assert.NotNil(t, o.PaymentRef)

		assert.Equal(t, events.PaymentFailed, h.pub.events[0].Type)
		assert.Equal(t, uint64(1), h.metrics.Snapshot().Counters[metrics.PaymentsFailed])
		h.repo.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("Retry after failure", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusPending, order.PaymentFailed)

		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		h.orders.On("ApplyPaymentOutcome", mock.Anything, o.ID, order.PaymentFailed, mock.Anything).Return(nil)

		res, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID})
		require.NoError(t, err)
		assert.Equal(t, order.PaymentPaid, res.PaymentStatus)
	})

	t.Run("Already paid", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusProcessing, order.PaymentPaid)
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)

		_, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, "Order has already been paid", apperror.MessageOf(err))
		assert.Zero(t, h.gateway.calls)
		h.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Cancelled order", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusCancelled, order.PaymentPending)
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)

		_, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, "Cannot pay for a cancelled order", apperror.MessageOf(err))
		assert.Zero(t, h.gateway.calls)
	})

	t.Run("Order of another user", func(t *testing.T) {
		h := newHarness(true)
		id := uuid.New()
		h.orders.On("GetForUser", mock.Anything, id, userID).Return(nil, nil)

		_, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: id})
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
		assert.Equal(t, "Order not found", apperror.MessageOf(err))
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("Missing order id", func(t *testing.T) {
		h := newHarness(true)
		_, err := h.svc.Simulate(ctx, userID, SimulateInput{})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		assert.Equal(t, "orderId is required", apperror.MessageOf(err))
	})

	t.Run("Unknown method", func(t *testing.T) {
		h := newHarness(true)
		_, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: uuid.New(), Method: "cash"})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		assert.ErrorIs(t, err, ErrInvalidMethod)
	})

	t.Run("Concurrent payment", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusPending, order.PaymentPending)
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		h.orders.On("ApplyPaymentOutcome", mock.Anything, o.ID, order.PaymentPending, mock.Anything).
			Return(order.ErrStaleStatus)

		_, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Empty(t, h.pub.events)
	})

	t.Run("Persistence failure", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusPending, order.PaymentPending)
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		_, err := h.svc.Simulate(ctx, userID, SimulateInput{OrderID: o.ID})
		assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
		h.orders.AssertNotCalled(t, "ApplyPaymentOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_LatestForOrder(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusProcessing, order.PaymentPaid)
		p := &Payment{ID: uuid.New(), OrderID: o.ID, Status: StatusSuccess}
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("LatestForOrder", mock.Anything, o.ID).Return(p, nil)

		got, err := h.svc.LatestForOrder(ctx, userID, o.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("No attempts", func(t *testing.T) {
		h := newHarness(true)
		o := testOrder(userID, order.StatusPending, order.PaymentPending)
		h.orders.On("GetForUser", mock.Anything, o.ID, userID).Return(o, nil)
		h.repo.On("LatestForOrder", mock.Anything, o.ID).Return(nil, nil)

		_, err := h.svc.LatestForOrder(ctx, userID, o.ID)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
		assert.Equal(t, "No payment record found for this order", apperror.MessageOf(err))
	})

	t.Run("Foreign order", func(t *testing.T) {
		h := newHarness(true)
		id := uuid.New()
		h.orders.On("GetForUser", mock.Anything, id, userID).Return(nil, nil)

		_, err := h.svc.LatestForOrder(ctx, userID, id)
		assert.Equal(t, "Order not found", apperror.MessageOf(err))
		h.repo.AssertNotCalled(t, "LatestForOrder", mock.Anything, mock.Anything)
	})
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	h := newHarness(true)
	h.repo.On("ListByUser", mock.Anything, userID).
		Return([]HistoryEntry{{Payment: Payment{TransactionRef: "TXN-1"}}}, nil).Once()

	got, err := h.svc.History(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	h.repo.On("ListByUser", mock.Anything, userID).Return(nil, errors.New("boom")).Once()
	_, err = h.svc.History(ctx, userID)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}
