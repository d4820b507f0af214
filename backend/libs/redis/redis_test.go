package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	client, err := NewRedisClient(" "+mr.Addr()+" ", "secret", WithDB(2), WithPoolSize(4))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 2, client.Options().DB)
	assert.Equal(t, 4, client.Options().PoolSize)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.Select(2)
	mr.CheckGet(t, "k", "v")
}

func TestNewRedisClientErrors(t *testing.T) {
	_, err := NewRedisClient("", "")
	require.EqualError(t, err, "redis: addr is empty")

	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")
	_, err = NewRedisClient(mr.Addr(), "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping")
}

func TestOptionsIgnoreUnsetValues(t *testing.T) {
	o := baseOptions("localhost:6379", "")
	for _, opt := range []Option{WithDB(-1), WithPoolSize(0), WithTimeouts(0, 0)} {
		opt(o)
	}
	assert.Zero(t, o.DB)
	assert.Zero(t, o.PoolSize)
	assert.Equal(t, 5*time.Second, o.DialTimeout)
	assert.Equal(t, 3*time.Second, o.ReadTimeout)

	WithTimeouts(time.Second, 500*time.Millisecond)(o)
	assert.Equal(t, time.Second, o.DialTimeout)
	assert.Equal(t, 500*time.Millisecond, o.WriteTimeout)
}
