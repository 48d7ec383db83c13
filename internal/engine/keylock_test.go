package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowcart/optimizer-cli/internal/model"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	locks := newKeyLock()
	key := lockKey{shop: testShop, productID: "123", typ: model.TypeTitle}

	var active atomic.Bool
	var overlaps atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(key)
			defer unlock()

			if !active.CompareAndSwap(false, true) {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			active.Store(false)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), overlaps.Load())
}

func TestKeyLock_SameKeyBlocksUntilReleased(t *testing.T) {
	locks := newKeyLock()
	key := lockKey{shop: testShop, productID: "123", typ: model.TypeTitle}

	unlock := locks.lock(key)

	acquired := make(chan struct{})
	go func() {
		second := locks.lock(key)
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not handed over after release")
	}
}

func TestKeyLock_DistinctKeysDoNotBlock(t *testing.T) {
	locks := newKeyLock()

	unlock := locks.lock(lockKey{shop: testShop, productID: "123", typ: model.TypeTitle})
	defer unlock()

	done := make(chan struct{})
	go func() {
		// Same product, different type: independent targets.
		other := locks.lock(lockKey{shop: testShop, productID: "123", typ: model.TypePricing})
		other()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind an unrelated lock")
	}
}

func TestKeyLock_EntriesFreedAfterRelease(t *testing.T) {
	locks := newKeyLock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(lockKey{shop: testShop, productID: "123", typ: model.TypeKeywords})
			time.Sleep(time.Millisecond)
			unlock()
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.locks)
}
