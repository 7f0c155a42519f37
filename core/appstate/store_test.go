package appstate

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "visits")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "visits", "1"))
	v, ok, err := store.Get(ctx, "visits")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, store.Set(ctx, "visits", "2"))
	v, _, err = store.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	require.NoError(t, store.Delete(ctx, "visits"))
	_, ok, err = store.Get(ctx, "visits")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	runStoreContract(t, store)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisFromClient(client, "fastry:")
	defer store.Close()

	runStoreContract(t, store)

	require.NoError(t, store.Set(context.Background(), "greeting", "hola"))
	got, err := mr.Get("fastry:greeting")
	require.NoError(t, err)
	assert.Equal(t, "hola", got)
}

func TestNewRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedis(context.Background(), addr, "")
	assert.Error(t, err)
}
