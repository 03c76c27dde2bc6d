package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DB wraps sqlx.DB with lifecycle logging
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// DSN builds the go-sqlite3 connection string. Transactions start with
// BEGIN IMMEDIATE so concurrent writers queue on the busy timeout instead of
// failing when they upgrade a read lock.
func DSN(cfg Config) string {
	return dsn(cfg, "immediate")
}

// ReaderDSN builds the connection string for the reporting pool. Deferred
// transactions that only read see a WAL snapshot and never block writers.
func ReaderDSN(cfg Config) string {
	return dsn(cfg, "deferred")
}

func dsn(cfg Config, txlock string) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_txlock=%s",
		cfg.Path, busy.Milliseconds(), txlock)
}

// New opens and verifies the database connection
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	return open(cfg, DSN(cfg), logger)
}

// NewReader opens a second pool on the same file for read-only snapshots
func NewReader(cfg Config, logger *zap.Logger) (*DB, error) {
	return open(cfg, ReaderDSN(cfg), logger)
}

func open(cfg Config, dsn string, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established", zap.String("path", cfg.Path))
	return &DB{DB: sqlDB, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("Closing database connection")
	return db.DB.Close()
}
