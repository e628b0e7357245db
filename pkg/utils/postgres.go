package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver registered by pgx stdlib.
const DriverName = "pgx"

// ErrDatabaseUnavailable wraps every failed ping so callers can map it to 503.
var ErrDatabaseUnavailable = errors.New("database unavailable")

// PoolConfig sizes the database/sql pool. Zero values take the defaults below,
// which fit one api or worker process sharing Postgres with its peers.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 20
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns / 2
		if c.MaxIdleConns == 0 {
			c.MaxIdleConns = 1
		}
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	return c
}

// OpenPostgres opens the pgx-backed pool and verifies it answers.
// dsn carries the password; never log it.
func OpenPostgres(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	applyPool(db, pool)

	if err := HealthCheck(ctx, db, pool.PingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func applyPool(db *sql.DB, pool PoolConfig) {
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
}

// HealthCheck pings the DB within timeout. Failures wrap ErrDatabaseUnavailable.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	return nil
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx runs fn in a transaction: commit when fn returns nil, rollback when
// it errors or panics (the panic is re-raised after rollback).
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		committed = true
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
