package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCSRFStore_GenerateAndValidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	csrf := NewCSRFStore(store, time.Hour, zap.NewNop())

	token, err := csrf.Generate(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, token, 64)

	ok, err := csrf.Validate(ctx, "session-1", token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = csrf.Validate(ctx, "session-1", "wrong-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCSRFStore_SecondTokenInvalidatesFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	csrf := NewCSRFStore(store, time.Hour, zap.NewNop())

	first, err := csrf.Generate(ctx, "session-2")
	require.NoError(t, err)
	second, err := csrf.Generate(ctx, "session-2")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	ok, err := csrf.Validate(ctx, "session-2", first)
	require.NoError(t, err)
	assert.False(t, ok, "regeneration must invalidate the prior token")

	ok, err = csrf.Validate(ctx, "session-2", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCSRFStore_MissingSessionValidatesFalse(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	csrf := NewCSRFStore(store, time.Hour, zap.NewNop())

	ok, err := csrf.Validate(context.Background(), "never-created", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCSRFStore_Revoke(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	csrf := NewCSRFStore(store, time.Hour, zap.NewNop())

	token, err := csrf.Generate(ctx, "session-3")
	require.NoError(t, err)

	require.NoError(t, csrf.Revoke(ctx, "session-3"))
	require.NoError(t, csrf.Revoke(ctx, "session-3"), "revoke is idempotent")

	ok, err := csrf.Validate(ctx, "session-3", token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", "v", 10*time.Millisecond))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	time.Sleep(20 * time.Millisecond)

	_, err = store.Get(ctx, "k")
	assert.ErrorAs(t, err, &ErrKeyNotFound{})
}
