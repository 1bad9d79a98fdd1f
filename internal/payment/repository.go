package payment

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	LatestForOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const paymentColumns = `p.id, p.order_id, p.user_id, p.amount, p.method, p.status,
	p.transaction_ref, p.gateway_response, p.simulated_at, p.created_at, p.updated_at`

func scanPayment(row interface{ Scan(...any) error }, extra ...any) (*Payment, error) {
	var p Payment
	dest := []any{
		&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Method, &p.Status,
		&p.TransactionRef, &p.GatewayResponse, &p.SimulatedAt, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, user_id, amount, method, status,
			transaction_ref, gateway_response, simulated_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		p.ID, p.OrderID, p.UserID, p.Amount, p.Method, p.Status,
		p.TransactionRef, p.GatewayResponse, p.SimulatedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert payment",
			zap.String("layer", "repository"),
			zap.String("order_id", p.OrderID.String()),
			zap.Error(err),
		)
	}
	return err
}

// LatestForOrder returns nil, nil when the order has no payment attempts.
func (r *repository) LatestForOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		WHERE p.order_id = $1
		ORDER BY p.created_at DESC
		LIMIT 1
	`, orderID)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+paymentColumns+`, o.order_number, o.total_amount, o.status
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		p, err := scanPayment(rows, &e.Order.OrderNumber, &e.Order.TotalAmount, &e.Order.Status)
		if err != nil {
			return nil, err
		}
		e.Payment = *p
		e.Order.ID = p.OrderID
		out = append(out, e)
	}
	return out, rows.Err()
}
