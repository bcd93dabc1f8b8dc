package memcache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := New(clock)

	require.NoError(t, c.Set(ctx, "students:u1:", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "students:u2:class=LKG", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "plans:u1:", []byte("c"), time.Minute))

	val, ok, err := c.Get(ctx, "students:u1:")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), val)

	_, ok, _ = c.Get(ctx, "teachers:u1:")
	assert.False(t, ok)

	t.Run("expiry", func(t *testing.T) {
		clock.Advance(time.Minute)
		_, ok, _ := c.Get(ctx, "students:u1:")
		assert.False(t, ok)
		_, ok, _ = c.Get(ctx, "students:u2:class=LKG") // no ttl
		assert.True(t, ok)
	})

	t.Run("delete prefix", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "progress:u1:", []byte("d"), 0))
		require.NoError(t, c.DeletePrefix(ctx, "students:", "plans:"))
		_, ok, _ := c.Get(ctx, "students:u2:class=LKG")
		assert.False(t, ok)
		_, ok, _ = c.Get(ctx, "progress:u1:")
		assert.True(t, ok)
		assert.Equal(t, 1, c.Len())
	})
}

func TestCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := New(clockwork.NewFakeClock())
	val := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", val, 0))
	val[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}
