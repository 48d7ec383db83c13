package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowcart/optimizer-cli/internal/model"
)

func TestSQLite_OpenMissingDirectory(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "missing", "test.db"))
	require.Error(t, err)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

// Concurrent debits against one account must never overdraw it: with a
// balance of 5 and 8 competing debits, exactly 5 succeed and the rest see
// an insufficient-credits error.
func TestSQLite_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.Credit(ctx, "acme.myshopify.com", 5, "topup", "")
	require.NoError(t, err)

	var succeeded, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.TryDebit(ctx, "acme.myshopify.com", 1, "optimization_applied", "")
			switch {
			case err == nil:
				succeeded.Add(1)
			default:
				var ice *model.InsufficientCreditsError
				if errors.As(err, &ice) {
					rejected.Add(1)
				} else {
					t.Errorf("unexpected debit error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), succeeded.Load())
	assert.Equal(t, int64(3), rejected.Load())

	balance, err := s.GetBalance(ctx, "acme.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	report, err := s.Reconcile(ctx, "acme.myshopify.com")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(6), report.Transactions) // 1 credit + 5 debits
}

func TestSQLite_ConcurrentUpsertsSameKey(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.UpsertRecord(ctx, model.OptimizationRecord{
				ShopDomain:     "acme.myshopify.com",
				ProductID:      "123",
				Type:           model.TypeTitle,
				OptimizedValue: "Premium Red Shoes | Shoes",
				AppliedAt:      time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("upsert failed: %v", err)
			}
		}()
	}
	wg.Wait()

	recs, err := s.ListRecords(ctx, "acme.myshopify.com", RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
