package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type DB struct {
	*sql.DB
	Dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{
		DB:      db,
		Dialect: dialect,
	}
}

// PoolConfig sizes the shared connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects with the dialect's driver, verifies connectivity and applies
// migrations. The caller owns the returned DB and must Close it.
func Open(ctx context.Context, dialect Dialect, dsn string, pool PoolConfig) (*DB, error) {
	raw, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect.Name(), err)
	}
	if pool.MaxOpenConns > 0 {
		raw.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		raw.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		raw.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.Name(), err)
	}

	if err := dialect.Migrate(ctx, raw); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", dialect.Name(), err)
	}

	return New(raw, dialect), nil
}

// WithTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
