package product

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
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, f ListFilter) ([]Product, int, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product, stock *int) error
	Delete(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error

	ListCollections(ctx context.Context, onlyActive bool) ([]Collection, error)
	GetCollectionByID(ctx context.Context, id uuid.UUID) (*Collection, error)
	GetCollectionBySlug(ctx context.Context, slug string) (*Collection, error)
	CreateCollection(ctx context.Context, c *Collection) error
	UpdateCollection(ctx context.Context, c *Collection) error
	DeleteCollection(ctx context.Context, id uuid.UUID) error
	CountByCollection(ctx context.Context, id uuid.UUID) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, description, sku, price, discount_price, stock,
	is_active, collection_id, tags, created_at, updated_at`

const collectionColumns = `id, name, slug, description, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, extra ...any) (*Product, error) {
	var (
		p          Product
		discount   sql.NullFloat64
		collection uuid.NullUUID
	)
	dest := []any{
		&p.ID, &p.Name, &p.Description, &p.SKU, &p.Price, &discount, &p.Stock,
		&p.IsActive, &collection, pq.Array(&p.Tags), &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if discount.Valid {
		d := discount.Float64
		p.DiscountPrice = &d
	}
	if collection.Valid {
		c := collection.UUID
		p.CollectionID = &c
	}
	return &p, nil
}

// GetByID returns nil, nil when the product does not exist.
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(db.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Product, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.OnlyActive {
		conds = append(conds, "is_active = TRUE")
	} else if f.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*f.IsActive))
	}
	if f.CollectionID != nil {
		conds = append(conds, "collection_id = "+arg(*f.CollectionID))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR sku ILIKE %s)", p, p))
	}
	if f.MinPrice != nil {
		conds = append(conds, "COALESCE(discount_price, price) >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "COALESCE(discount_price, price) <= "+arg(*f.MaxPrice))
	}

	query := `SELECT ` + productColumns + `, COUNT(*) OVER() FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		products []Product
		total    int
	)
	for rows.Next() {
		p, err := scanProduct(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Tags == nil {
		p.Tags = []string{}
	}

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO products (
			id, name, description, sku, price, discount_price, stock,
			is_active, collection_id, tags, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID, p.Name, p.Description, p.SKU, p.Price, p.DiscountPrice, p.Stock,
		p.IsActive, p.CollectionID, pq.Array(p.Tags), p.CreatedAt, p.UpdatedAt,
	)
	return mapWriteError(err)
}

// Update writes the editable columns. A nil stock keeps the stored value;
// p.Stock is refreshed from the row either way.
func (r *repository) Update(ctx context.Context, p *Product, stock *int) error {
	p.UpdatedAt = time.Now().UTC()
	if p.Tags == nil {
		p.Tags = []string{}
	}

	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, sku = $3, price = $4, discount_price = $5,
			stock = COALESCE($6, stock), is_active = $7, collection_id = $8,
			tags = $9, updated_at = $10
		WHERE id = $11
		RETURNING stock
	`,
		p.Name, p.Description, p.SKU, p.Price, p.DiscountPrice,
		stock, p.IsActive, p.CollectionID, pq.Array(p.Tags), p.UpdatedAt, p.ID,
	).Scan(&p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	return mapWriteError(err)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrProductNotFound)
}

// AdjustStock adds delta to the product's stock in a single conditional
// statement, so concurrent writers can never drive it below zero.
func (r *repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AdjustStock"),
		zap.String("product_id", id.String()),
		zap.Int("delta", delta),
	)

	conn := db.Conn(ctx, r.db)
	res, err := conn.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2 AND stock + $1 >= 0
	`, delta, id)
	if err != nil {
		log.Error("failed to adjust stock", zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrProductNotFound
	}
	log.Warn("stock adjustment rejected")
	return ErrInsufficientStock
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListCollections(ctx context.Context, onlyActive bool) ([]Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections`
	if onlyActive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCollectionByID returns nil, nil when the collection does not exist.
func (r *repository) GetCollectionByID(ctx context.Context, id uuid.UUID) (*Collection, error) {
	return r.getCollection(ctx, `WHERE id = $1`, id)
}

// GetCollectionBySlug returns nil, nil when no collection has the slug.
func (r *repository) GetCollectionBySlug(ctx context.Context, slug string) (*Collection, error) {
	return r.getCollection(ctx, `WHERE slug = $1`, slug)
}

func (r *repository) getCollection(ctx context.Context, where string, arg any) (*Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections ` + where

	c, err := scanCollection(db.Conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repository) CreateCollection(ctx context.Context, c *Collection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO collections (id, name, slug, description, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, c.ID, c.Name, c.Slug, c.Description, c.IsActive, c.CreatedAt)
	return mapCollectionError(err)
}

func (r *repository) UpdateCollection(ctx context.Context, c *Collection) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE collections
		SET name = $1, slug = $2, description = $3, is_active = $4
		WHERE id = $5
	`, c.Name, c.Slug, c.Description, c.IsActive, c.ID)
	if err != nil {
		return mapCollectionError(err)
	}
	return requireAffected(res, ErrCollectionNotFound)
}

// DeleteCollection fails with ErrCollectionInUse while products reference it.
func (r *repository) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return mapCollectionError(err)
	}
	return requireAffected(res, ErrCollectionNotFound)
}

func (r *repository) CountByCollection(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE collection_id = $1`, id,
	).Scan(&n)
	return n, err
}

func mapCollectionError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrDuplicateSlug
		case "23503":
			return ErrCollectionInUse
		}
	}
	return err
}

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrDuplicateSKU
		case "23503":
			return ErrCollectionNotFound
		}
	}
	return err
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
