// Package store persists credit accounts, the credit ledger, applied
// optimization records, store connections, and the reconciliation log.
// Two drivers implement the same Store interface: SQLite for single-host
// deployments and Postgres for shared ones.
package store

import (
	"context"

	"github.com/glowcart/optimizer-cli/internal/model"
)

// RecordFilter specifies criteria for listing optimization records.
type RecordFilter struct {
	Type   model.OptimizationType `json:"type,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// CreditLedger mutates balances only through atomic ledger operations.
// Every successful debit or credit appends exactly one transaction row;
// a balance never goes negative.
type CreditLedger interface {
	// EnsureAccount creates a zero-balance account if none exists.
	EnsureAccount(ctx context.Context, shop string) error

	// GetBalance returns the current balance; a missing account reads as 0.
	GetBalance(ctx context.Context, shop string) (int64, error)

	// TryDebit atomically decrements the balance when it covers amount.
	// On an uncovered debit it returns model.InsufficientCreditsError with
	// the available balance and writes nothing.
	TryDebit(ctx context.Context, shop string, amount int64, reason, relatedID string) (*model.CreditTransaction, error)

	// Credit unconditionally increments the balance (top-ups, refunds),
	// creating the account if needed.
	Credit(ctx context.Context, shop string, amount int64, reason, relatedID string) (*model.CreditTransaction, error)

	// Transactions returns the newest ledger entries, newest first.
	Transactions(ctx context.Context, shop string, limit int) ([]model.CreditTransaction, error)

	// Reconcile compares the account balance against the ledger sum.
	Reconcile(ctx context.Context, shop string) (*model.ReconcileReport, error)
}

// RecordStore keeps the latest applied change per (shop, product, type).
type RecordStore interface {
	GetRecord(ctx context.Context, shop, productID string, typ model.OptimizationType) (*model.OptimizationRecord, error)
	GetRecordMap(ctx context.Context, shop string, typ model.OptimizationType) (map[string]model.OptimizationRecord, error)
	UpsertRecord(ctx context.Context, rec model.OptimizationRecord) error
	ListRecords(ctx context.Context, shop string, filter RecordFilter) ([]model.OptimizationRecord, error)
}

// ConnectionStore is the registry of installed shops.
type ConnectionStore interface {
	UpsertStore(ctx context.Context, conn model.StoreConnection) error
	GetStore(ctx context.Context, shop string) (*model.StoreConnection, error)
	ListStores(ctx context.Context) ([]model.StoreConnection, error)
}

// ReconciliationLog records catalog mutations that committed but could not
// be billed, for manual follow-up.
type ReconciliationLog interface {
	AppendReconciliation(ctx context.Context, entry model.ReconciliationEntry) error
	ListReconciliations(ctx context.Context, shop string, unresolvedOnly bool) ([]model.ReconciliationEntry, error)
	ResolveReconciliation(ctx context.Context, id string) error
}

// Store is the full persistence interface for the optimization engine.
type Store interface {
	CreditLedger
	RecordStore
	ConnectionStore
	ReconciliationLog

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
