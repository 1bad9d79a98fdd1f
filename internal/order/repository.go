package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, expected PaymentStatus, out PaymentOutcome) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `o.id, o.order_number, o.user_id, o.total_amount, o.status,
	o.payment_status, o.payment_ref, o.shipping_address, o.notes,
	o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }, extra ...any) (*Order, error) {
	var (
		o     Order
		ref   uuid.NullUUID
		notes sql.NullString
	)
	dest := []any{
		&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount, &o.Status,
		&o.PaymentStatus, &ref, &o.ShippingAddress, &notes,
		&o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if ref.Valid {
		r := ref.UUID
		o.PaymentRef = &r
	}
	o.Notes = notes.String
	return &o, nil
}

// Create inserts the order header and its item snapshots. Callers run it
// inside the placement transaction.
func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("order_id", o.ID.String()),
	)
	conn := db.Conn(ctx, r.db)

	_, err := conn.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, total_amount, status, payment_status,
			shipping_address, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		o.ID, o.OrderNumber, o.UserID, o.TotalAmount, o.Status, o.PaymentStatus,
		o.ShippingAddress, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	// position keeps items in checkout order; ids are random.
	for i, it := range o.Items {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, product_sku,
				quantity, price, subtotal, position
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			it.ID, o.ID, it.ProductID, it.ProductName, it.ProductSKU,
			it.Quantity, it.Price, it.Subtotal, i,
		); err != nil {
			log.Error("failed to insert order item", zap.Error(err))
			return err
		}
	}
	return nil
}

// GetByID returns nil, nil when the order does not exist. Inside a
// transaction the row is locked until commit.
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `WHERE o.id = $1`, id)
}

// GetForUser is GetByID scoped to the owner.
func (r *repository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `WHERE o.id = $1 AND o.user_id = $2`, id, userID)
}

func (r *repository) getOne(ctx context.Context, where string, args ...any) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o ` + where
	if db.InTx(ctx) {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byOrder, err := r.loadItems(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = byOrder[o.ID]
	return o, nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		conds = append(conds, "o.user_id = "+arg(*f.UserID))
	}
	if f.Status != nil {
		conds = append(conds, "o.status = "+arg(*f.Status))
	}
	if f.PaymentStatus != nil {
		conds = append(conds, "o.payment_status = "+arg(*f.PaymentStatus))
	}

	query := `SELECT ` + orderColumns + `, COUNT(*) OVER() FROM orders o`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY o.created_at DESC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		orders []Order
		ids    []uuid.UUID
		total  int
	)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(orders) == 0 {
		return []Order{}, total, nil
	}

	byOrder, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, total, nil
}

func (r *repository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	ids := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		ids[i] = id.String()
	}

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_sku, quantity, price, subtotal
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Item, len(orderIDs))
	for rows.Next() {
		var (
			it      Item
			orderID uuid.UUID
			pid     uuid.NullUUID
		)
		if err := rows.Scan(&it.ID, &orderID, &pid, &it.ProductName, &it.ProductSKU,
			&it.Quantity, &it.Price, &it.Subtotal); err != nil {
			return nil, err
		}
		if pid.Valid {
			p := pid.UUID
			it.ProductID = &p
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

// UpdateStatus moves the order from -> to. It fails with ErrStaleStatus when
// the stored status is no longer from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	return staleUnlessAffected(res)
}

// ApplyPaymentOutcome records a payment attempt on the order, guarded by the
// payment status the caller validated against.
func (r *repository) ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, expected PaymentStatus, out PaymentOutcome) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1, status = $2, payment_ref = $3, updated_at = $4
		WHERE id = $5 AND payment_status = $6 AND status <> $7
	`, out.PaymentStatus, out.Status, out.PaymentRef, time.Now().UTC(), id, expected, StatusCancelled)
	if err != nil {
		return err
	}
	return staleUnlessAffected(res)
}

func staleUnlessAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}
