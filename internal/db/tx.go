package db

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Conn returns the transaction bound to ctx by RunInTx, or fallback.
func Conn(ctx context.Context, fallback *sql.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return fallback
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) TxManager {
	return &txManager{db: db}
}

// RunInTx runs fn inside a single transaction. Repositories called with the
// ctx passed to fn join it through Conn. Nested calls reuse the outer tx.
func (m *txManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	log := logger.FromCtx(ctx).With(zap.String("layer", "db"))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
