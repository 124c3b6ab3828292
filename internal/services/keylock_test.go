package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), "sp-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := km.Acquire(context.Background(), "sp-1")
		require.NoError(t, err)
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the key before release")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the key after release")
	}
}

func TestKeyedMutexDistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()

	release1, err := km.Acquire(context.Background(), "sp-1")
	require.NoError(t, err)
	defer release1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release2, err := km.Acquire(ctx, "sp-2")
	require.NoError(t, err)
	release2()
}

func TestKeyedMutexAcquireHonorsContext(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), "sp-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = km.Acquire(ctx, "sp-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyedMutexCleansUpEntries(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), "sp-1")
	require.NoError(t, err)
	release()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
