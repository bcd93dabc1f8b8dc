//go:build integration

package rediscache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

var redisAddr string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting redis container: %v\n", err)
		os.Exit(1)
	}
	redisAddr, err = container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "getting redis endpoint: %v\n", err)
		_ = container.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()
	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "terminating redis container: %v\n", err)
	}
	os.Exit(code)
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	require.NoError(t, client.FlushAll(context.Background()).Err())
	c := New(client, "preschool")
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "students:u1:", []byte("a"), time.Minute))
	val, ok, err := c.Get(ctx, "students:u1:")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), val)

	_, ok, err = c.Get(ctx, "students:u2:")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := c.client.TTL(ctx, "preschool:students:u1:").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	for i := 0; i < deleteBatch+10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("students:u%d:", i), []byte("x"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "plans:u1:", []byte("p"), time.Minute))
	require.NoError(t, c.Set(ctx, "students*:odd", []byte("o"), time.Minute))

	require.NoError(t, c.DeletePrefix(ctx, "students:"))

	n, err := c.client.DBSize(ctx).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, ok, _ := c.Get(ctx, "plans:u1:")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "students*:odd")
	assert.True(t, ok)
}
