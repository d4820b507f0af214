package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Option adjusts client options before the connection check.
type Option func(*goredis.Options)

// WithDB selects a logical database.
func WithDB(db int) Option {
	return func(o *goredis.Options) {
		if db >= 0 {
			o.DB = db
		}
	}
}

// WithPoolSize sizes the connection pool; non-positive keeps the go-redis default.
func WithPoolSize(n int) Option {
	return func(o *goredis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// WithTimeouts overrides dial and io timeouts. Zero values are left untouched.
func WithTimeouts(dial, io time.Duration) Option {
	return func(o *goredis.Options) {
		if dial > 0 {
			o.DialTimeout = dial
		}
		if io > 0 {
			o.ReadTimeout = io
			o.WriteTimeout = io
		}
	}
}

func baseOptions(addr, password string) *goredis.Options {
	return &goredis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisClient builds a go-redis client from addr and opts and refuses to return
// it until PING succeeds within the dial timeout.
func NewRedisClient(addr, password string, opts ...Option) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	options := baseOptions(addr, password)
	for _, opt := range opts {
		opt(options)
	}
	client := goredis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), options.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s db %d: %w", addr, options.DB, err)
	}
	return client, nil
}
