package treestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryJQ(t *testing.T) {
	store := newTestStore(t)
	root, left, right := buildSampleTree(t, store)
	ctx := context.Background()

	t.Run("values in level order", func(t *testing.T) {
		result, err := store.QueryJQ(ctx, `[.[].value]`)
		require.NoError(t, err)
		assert.Equal(t, []any{float64(10), float64(5), float64(15)}, result)
	})

	t.Run("filter by value", func(t *testing.T) {
		result, err := store.QueryJQ(ctx, `[.[] | select(.value > 7) | .id]`)
		require.NoError(t, err)
		assert.Equal(t, []any{root.ID, right.ID}, result)
	})

	t.Run("single result is unwrapped", func(t *testing.T) {
		result, err := store.QueryJQ(ctx, `length`)
		require.NoError(t, err)
		assert.Equal(t, 3, int(result.(float64)))
	})

	t.Run("parent field is visible", func(t *testing.T) {
		result, err := store.QueryJQ(ctx, `[.[] | select(.parent != null) | .parent] | unique`)
		require.NoError(t, err)
		assert.Equal(t, []any{root.ID}, result)
	})

	t.Run("leaves have no parent key collision", func(t *testing.T) {
		result, err := store.QueryJQ(ctx, `map(select(.id == "`+left.ID+`")) | .[0].value`)
		require.NoError(t, err)
		assert.Equal(t, float64(5), result)
	})

	t.Run("empty expression is rejected", func(t *testing.T) {
		_, err := store.QueryJQ(ctx, "")
		require.Error(t, err)
	})

	t.Run("bad expression is rejected", func(t *testing.T) {
		_, err := store.QueryJQ(ctx, `.[ |`)
		require.Error(t, err)
	})

	t.Run("empty tree yields empty array input", func(t *testing.T) {
		empty := newTestStore(t)
		result, err := empty.QueryJQ(ctx, `length`)
		require.NoError(t, err)
		assert.Equal(t, 0, int(result.(float64)))
	})
}

func TestJQQueryCache(t *testing.T) {
	cache := newJQQueryCache(2)

	first, err := cache.get(`.`)
	require.NoError(t, err)
	second, err := cache.get(`.`)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Overflow resets the cache; queries still compile.
	_, err = cache.get(`.[0]`)
	require.NoError(t, err)
	_, err = cache.get(`.[1]`)
	require.NoError(t, err)
	third, err := cache.get(`.`)
	require.NoError(t, err)
	require.NotNil(t, third)

	_, err = cache.get(`invalid jq {{`)
	require.Error(t, err)
}
