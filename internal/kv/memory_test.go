package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Hour))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	s.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CompareAndSwap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v1"), time.Hour))

	require.NoError(t, s.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"), time.Hour))

	// Stale expected value loses the swap.
	err := s.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v3"), time.Hour)
	assert.ErrorIs(t, err, ErrCASMismatch)

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	// CAS against an absent key is a mismatch, not a create.
	err = s.CompareAndSwap(ctx, "absent", []byte("x"), []byte("y"), time.Hour)
	assert.ErrorIs(t, err, ErrCASMismatch)
}

func TestMemoryStore_IncrKeepsCreationTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.Incr(ctx, "c", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Incr(ctx, "c", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	s.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	n, err = s.Incr(ctx, "c", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired counter restarts from scratch")
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, s.Delete(ctx, "k"))
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "k"), "deleting an absent key is not an error")
}
