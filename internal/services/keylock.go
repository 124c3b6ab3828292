package services

import (
	"context"
	"sync"
)

// KeyedMutex serializes operations that touch the same key (supplier
// product id during import commits) while letting distinct keys proceed
// concurrently. Entries are reference-counted and removed when the last
// holder releases, so the map does not grow with the catalog.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates a KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the key's slot is free or the context is done.
// The returned release function must be called exactly once.
func (km *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &keyLock{ch: make(chan struct{}, 1)}
		km.locks[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			km.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(km.locks, key)
			}
			km.mu.Unlock()
		}, nil
	case <-ctx.Done():
		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
		return nil, ctx.Err()
	}
}
