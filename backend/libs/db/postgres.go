package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultConnIdleTime = 30 * time.Minute
	defaultPingTimeout  = 5 * time.Second
)

// PoolOptions tunes the database/sql pool.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
	ConnIdleTime time.Duration
	PingTimeout  time.Duration
}

// Option mutates PoolOptions.
type Option func(*PoolOptions)

// WithMaxOpenConns raises or lowers the open connection cap. Idle connections follow
// when the cap drops below the idle default.
func WithMaxOpenConns(n int) Option {
	return func(o *PoolOptions) {
		if n <= 0 {
			return
		}
		o.MaxOpenConns = n
		if o.MaxIdleConns > n {
			o.MaxIdleConns = n
		}
	}
}

// WithPingTimeout bounds the startup connectivity check.
func WithPingTimeout(d time.Duration) Option {
	return func(o *PoolOptions) {
		if d > 0 {
			o.PingTimeout = d
		}
	}
}

func defaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns: defaultMaxOpenConns,
		MaxIdleConns: defaultMaxIdleConns,
		ConnLifetime: defaultConnLifetime,
		ConnIdleTime: defaultConnIdleTime,
		PingTimeout:  defaultPingTimeout,
	}
}

// NewPostgresDB creates a pgx/stdlib backed *sql.DB pool and validates the connection.
func NewPostgresDB(dsn string, opts ...Option) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: empty DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if err := configurePool(db, opts...); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func configurePool(db *sql.DB, opts ...Option) error {
	o := defaultPoolOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnLifetime)
	db.SetConnMaxIdleTime(o.ConnIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), o.PingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db: ping: %w", err)
	}
	return nil
}
