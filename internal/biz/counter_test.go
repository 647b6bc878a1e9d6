package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore()

	n, err := store.Increment(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Increment(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// 不同 key 互不影响
	n, err = store.Increment(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCounterStoreWindowReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore()

	_, err := store.Increment(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, store.ResetAfter(ctx, "k1", 10*time.Millisecond))

	time.Sleep(25 * time.Millisecond)

	n, err := store.Increment(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "count must restart after the window elapses")
}
