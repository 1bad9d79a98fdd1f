package user

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, name, email, password_hash, role, is_anonymous, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		hash sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role, &u.IsAnonymous, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String
	return &u, nil
}

func (r *repository) Create(ctx context.Context, u *User) error {
	var hash sql.NullString
	if u.PasswordHash != "" {
		hash = sql.NullString{String: u.PasswordHash, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, is_anonymous, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, hash, u.Role, u.IsAnonymous, u.IsActive).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailExists
		}
		logger.FromCtx(ctx).Error("db: failed to insert user",
			zap.String("email", u.Email),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// FindByEmail returns nil, nil when no user has that email.
func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}
