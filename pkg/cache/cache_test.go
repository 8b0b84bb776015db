package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		c := NewMemoryCache()

		require.NoError(t, c.Set(ctx, "abc-client", []byte("name\nAda"), time.Minute))

		got, err := c.Get(ctx, "abc-client")
		require.NoError(t, err)
		assert.Equal(t, "name\nAda", string(got))

		require.NoError(t, c.Delete(ctx, "abc-client"))
		_, err = c.Get(ctx, "abc-client")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stored value is a copy", func(t *testing.T) {
		c := NewMemoryCache()
		value := []byte("abc")
		require.NoError(t, c.Set(ctx, "k", value, 0))
		value[0] = 'x'

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("expiry", func(t *testing.T) {
		c := NewMemoryCache()
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "forever", []byte("2"), 0))

		now = now.Add(2 * time.Minute)

		_, err := c.Get(ctx, "short")
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := c.Get(ctx, "forever")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))
	})

	t.Run("expired read keeps a fresh write", func(t *testing.T) {
		c := NewMemoryCache()
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "hash-client", []byte("old"), time.Minute))
		now = now.Add(2 * time.Minute)

		// Store a new payload between the read of the stale entry and its removal.
		rewritten := false
		c.now = func() time.Time {
			if !rewritten {
				rewritten = true
				require.NoError(t, c.Set(ctx, "hash-client", []byte("new"), time.Hour))
			}
			return now
		}

		got, err := c.Get(ctx, "hash-client")
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))

		got, err = c.Get(ctx, "hash-client")
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))
	})

	t.Run("sweep", func(t *testing.T) {
		c := NewMemoryCache()
		now := time.Now()
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))

		now = now.Add(time.Minute)
		assert.Equal(t, 1, c.Sweep())
	})

	t.Run("concurrent access", func(t *testing.T) {
		c := NewMemoryCache()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", i%5)
				_ = c.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = c.Get(ctx, key)
			}(i)
		}
		wg.Wait()
	})
}
