package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig sizes the shared Postgres connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is the Postgres handle all repositories run on, backed by the pgx
// stdlib driver.
type DB struct {
	Client *sql.DB
}

// NewDB opens a pooled connection and verifies it with a ping.
func NewDB(ctx context.Context, connString string, pool PoolConfig) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db}, nil
}

// Close releases the pool.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
