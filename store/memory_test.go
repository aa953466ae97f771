package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adapters(t *testing.T) map[string]Adapter {
	fa, err := NewFileAdapter(t.TempDir())
	require.NoError(t, err)
	return map[string]Adapter{
		"memory": NewMemoryAdapter(),
		"file":   fa,
	}
}

func TestAdapter_GetSet(t *testing.T) {
	ctx := context.Background()
	for name, adapter := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, adapter.Set(ctx, "key1", json.RawMessage(`"value1"`)))

			raw, ok, err := adapter.Get(ctx, "key1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `"value1"`, string(raw))

			require.NoError(t, adapter.Set(ctx, "key1", json.RawMessage(`{"v":2}`)))
			raw, _, err = adapter.Get(ctx, "key1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":2}`, string(raw))

			_, ok, err = adapter.Get(ctx, "nonexistent")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestAdapter_Delete(t *testing.T) {
	ctx := context.Background()
	for name, adapter := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, adapter.Set(ctx, "key1", json.RawMessage(`1`)))
			require.NoError(t, adapter.Delete(ctx, "key1"))

			_, ok, err := adapter.Get(ctx, "key1")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, adapter.Delete(ctx, "nonexistent"))
		})
	}
}

func TestAdapter_Keys(t *testing.T) {
	ctx := context.Background()
	for name, adapter := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"run-b", "run-a", "run-c"} {
				require.NoError(t, adapter.Set(ctx, k, json.RawMessage(`[]`)))
			}
			keys, err := adapter.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-a", "run-b", "run-c"}, keys)
		})
	}
}

func TestAdapter_InvalidKey(t *testing.T) {
	ctx := context.Background()
	for name, adapter := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, adapter.Set(ctx, "", json.RawMessage(`1`)), ErrInvalidKey)
		})
	}

	t.Run("file rejects path traversal", func(t *testing.T) {
		fa, err := NewFileAdapter(t.TempDir())
		require.NoError(t, err)
		assert.ErrorIs(t, fa.Set(ctx, "../escape", json.RawMessage(`1`)), ErrInvalidKey)
		assert.ErrorIs(t, fa.Set(ctx, ".hidden", json.RawMessage(`1`)), ErrInvalidKey)
	})
}

func TestMemoryAdapter_CopiesValues(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	value := json.RawMessage(`"abc"`)
	require.NoError(t, adapter.Set(ctx, "k", value))
	value[1] = 'x'

	raw, _, err := adapter.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(raw))
}

func TestMemoryAdapter_Concurrent(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = adapter.Set(ctx, "key", json.RawMessage(`1`))
			_, _, _ = adapter.Get(ctx, "key")
			_, _ = adapter.Keys(ctx)
		}(i)
	}
	wg.Wait()

	keys, err := adapter.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, keys)
}
