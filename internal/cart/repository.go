package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront-be/internal/db"

	"github.com/google/uuid"
)

type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*Cart, error)
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, price float64) error
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// GetOrCreate lazily creates the user's cart. The upsert keeps the
// one-cart-per-user constraint under concurrent first access.
func (r *repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c := Cart{UserID: userID}
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, created_at, updated_at
	`, uuid.New(), userID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if c.Items, err = r.items(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByUser returns nil, nil when the user has no cart yet. Inside a
// transaction the cart row stays locked until commit, so concurrent checkouts
// of the same cart serialize.
func (r *repository) GetByUser(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	query := `SELECT id, created_at, updated_at FROM carts WHERE user_id = $1`
	if db.InTx(ctx) {
		query += ` FOR UPDATE`
	}

	c := Cart{UserID: userID}
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, query, userID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.Items, err = r.items(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) items(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT ci.id, ci.product_id, p.name, ci.quantity, ci.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at ASC
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertItem sets the line's quantity and price snapshot, inserting the line
// if it does not exist.
func (r *repository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, price float64) error {
	conn := db.Conn(ctx, r.db)
	now := time.Now().UTC()

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
	`, uuid.New(), cartID, productID, quantity, price, now); err != nil {
		return err
	}

	_, err := conn.ExecContext(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, now, cartID)
	return err
}

func (r *repository) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *repository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`, userID)
	return err
}
