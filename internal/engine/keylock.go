package engine

import (
	"sync"

	"github.com/glowcart/optimizer-cli/internal/model"
)

// lockKey identifies one logical optimization target.
type lockKey struct {
	shop      string
	productID string
	typ       model.OptimizationType
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLock hands out a mutex per (shop, product, type) so concurrent
// applies to the same target serialize instead of double-billing.
// Entries are reference counted and removed once the last holder leaves,
// keeping the map bounded by in-flight work.
type keyLock struct {
	mu    sync.Mutex
	locks map[lockKey]*lockEntry
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[lockKey]*lockEntry)}
}

// lock blocks until the key is free and returns the release func.
func (k *keyLock) lock(key lockKey) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
