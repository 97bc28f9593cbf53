package proxypool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetClamps(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "http://1.1.1.1:80", 150))
	require.NoError(t, store.Set(ctx, "http://2.2.2.2:80", -5))

	scores, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		"http://1.1.1.1:80": 100,
		"http://2.2.2.2:80": 0,
	}, scores)
}

func TestMemoryStore_Adjust(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "http://1.1.1.1:80", 95))

	score, ok, err := store.Adjust(ctx, "http://1.1.1.1:80", 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, score)

	score, ok, err = store.Adjust(ctx, "http://1.1.1.1:80", -10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 90, score)

	_, ok, err = store.Adjust(ctx, "http://missing:80", 5)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "adjust must not create endpoints")
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "http://1.1.1.1:80", 50))
	require.NoError(t, store.Delete(ctx, "http://1.1.1.1:80"))
	require.NoError(t, store.Delete(ctx, "http://1.1.1.1:80"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
