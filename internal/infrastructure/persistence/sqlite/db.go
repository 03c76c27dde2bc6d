package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/port"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const txKey contextKey = "tx"

// DB wraps sqlx.DB and implements TransactionManager
type DB struct {
	*sqlx.DB
	reader *sqlx.DB
	logger *zap.Logger
}

// Option configures the transaction manager
type Option func(*DB)

// WithReader sets the pool used by WithReadTransaction
func WithReader(reader *sqlx.DB) Option {
	return func(db *DB) {
		db.reader = reader
	}
}

// NewDB creates a new database wrapper
func NewDB(db *sqlx.DB, logger *zap.Logger, opts ...Option) *DB {
	d := &DB{
		DB:     db,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithTransaction runs fn inside a transaction carried by the context.
// Nested calls join the outer transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}
	return db.run(ctx, db.DB, fn)
}

// WithReadTransaction runs fn against one consistent snapshot. Without a
// reader pool it falls back to a regular transaction.
func (db *DB) WithReadTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}
	pool := db.reader
	if pool == nil {
		pool = db.DB
	}
	return db.run(ctx, pool, fn)
}

func (db *DB) run(ctx context.Context, pool *sqlx.DB, fn func(ctx context.Context) error) error {
	tx, err := pool.BeginTxx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func extractTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// Executor returns the transaction carried by ctx, or db when there is none.
// Repositories must go through it so their statements join WithTransaction.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db
}

var _ port.TransactionManager = (*DB)(nil)
