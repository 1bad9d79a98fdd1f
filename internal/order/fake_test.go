package order

import (
	"context"
	"sort"
	"sync"

	"storefront-be/internal/cart"
	"storefront-be/internal/events"
	"storefront-be/internal/product"

	"github.com/google/uuid"
)

// memStore is an in-memory catalog, cart store, order repository and
// transaction manager. RunInTx snapshots all state and restores it when fn
// fails, which lets tests assert all-or-nothing behavior.
// Service tests here use it instead of testify mocks because a mock cannot
// hold state to roll back.
type memStore struct {
	products map[uuid.UUID]product.Product
	carts    map[uuid.UUID]cart.Cart
	orders   map[uuid.UUID]Order

	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		products: map[uuid.UUID]product.Product{},
		carts:    map[uuid.UUID]cart.Cart{},
		orders:   map[uuid.UUID]Order{},
	}
}

func (m *memStore) addProduct(name string, price float64, stock int) uuid.UUID {
	id := uuid.New()
	m.products[id] = product.Product{ID: id, Name: name, SKU: "SKU-" + name, Price: price, Stock: stock, IsActive: true}
	return id
}

func (m *memStore) addToCart(userID, productID uuid.UUID, qty int, price float64) {
	c := m.carts[userID]
	c.UserID = userID
	c.Items = append(c.Items, cart.Item{
		ID:          uuid.New(),
		ProductID:   productID,
		ProductName: m.products[productID].Name,
		Quantity:    qty,
		Price:       price,
	})
	m.carts[userID] = c
}

func (m *memStore) putOrder(o Order) {
	m.orders[o.ID] = o
}

func (m *memStore) stock(id uuid.UUID) int {
	return m.products[id].Stock
}

// --- TxManager ---

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	products := make(map[uuid.UUID]product.Product, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	carts := make(map[uuid.UUID]cart.Cart, len(m.carts))
	for k, v := range m.carts {
		v.Items = append([]cart.Item(nil), v.Items...)
		carts[k] = v
	}
	orders := make(map[uuid.UUID]Order, len(m.orders))
	for k, v := range m.orders {
		v.Items = append([]Item(nil), v.Items...)
		orders[k] = v
	}

	if err := fn(ctx); err != nil {
		m.products, m.carts, m.orders = products, carts, orders
		return err
	}
	return nil
}

// --- Catalog ---

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	p, ok := m.products[id]
	if !ok {
		return product.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return product.ErrInsufficientStock
	}
	p.Stock += delta
	m.products[id] = p
	return nil
}

// --- CartStore ---

func (m *memStore) GetByUser(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	c.Items = append([]cart.Item(nil), c.Items...)
	return &c, nil
}

func (m *memStore) Clear(ctx context.Context, userID uuid.UUID) error {
	c := m.carts[userID]
	c.Items = nil
	m.carts[userID] = c
	return nil
}

// --- Repository ---

type memOrders struct{ *memStore }

func (m memOrders) Create(ctx context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[o.ID] = *o
	return nil
}

func (m memOrders) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	o.Items = append([]Item(nil), o.Items...)
	return &o, nil
}

func (m memOrders) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Order, error) {
	o, err := m.GetByID(ctx, id)
	if err != nil || o == nil || o.UserID != userID {
		return nil, err
	}
	return o, nil
}

func (m memOrders) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	var all []Order
	for _, o := range m.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		if f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if f.Offset >= total {
		return []Order{}, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return all[f.Offset:end], total, nil
}

func (m memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return ErrStaleStatus
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

func (m memOrders) ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, expected PaymentStatus, out PaymentOutcome) error {
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != expected || o.Status == StatusCancelled {
		return ErrStaleStatus
	}
	o.PaymentStatus, o.Status = out.PaymentStatus, out.Status
	ref := out.PaymentRef
	o.PaymentRef = &ref
	m.orders[id] = o
	return nil
}

// --- collaborators ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingObserver struct {
	ids []uuid.UUID
}

func (r *recordingObserver) InvalidateProducts(ctx context.Context, ids ...uuid.UUID) {
	r.ids = append(r.ids, ids...)
}
