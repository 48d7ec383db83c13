package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/glowcart/optimizer-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	shop_domain TEXT PRIMARY KEY,
	balance     INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          TEXT PRIMARY KEY,
	shop_domain TEXT NOT NULL REFERENCES credit_accounts(shop_domain),
	delta       INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	related_id  TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS optimization_records (
	shop_domain     TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	type            TEXT NOT NULL,
	original_value  TEXT NOT NULL,
	optimized_value TEXT NOT NULL,
	credits_used    INTEGER NOT NULL DEFAULT 0,
	applied_at      DATETIME NOT NULL,
	PRIMARY KEY (shop_domain, product_id, type)
);

CREATE TABLE IF NOT EXISTS store_connections (
	shop_domain  TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	scopes       TEXT NOT NULL DEFAULT '',
	api_version  TEXT NOT NULL DEFAULT '',
	installed_at DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reconciliation_log (
	id          TEXT PRIMARY KEY,
	shop_domain TEXT NOT NULL,
	product_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	amount      INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_credit_tx_shop ON credit_transactions(shop_domain, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_shop_type ON optimization_records(shop_domain, type);
CREATE INDEX IF NOT EXISTS idx_recon_shop ON reconciliation_log(shop_domain);
CREATE INDEX IF NOT EXISTS idx_recon_open ON reconciliation_log(resolved_at) WHERE resolved_at IS NULL;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Credit ledger ---

func (s *SQLiteStore) EnsureAccount(ctx context.Context, shop string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_accounts (shop_domain, balance, created_at, updated_at) VALUES (?, 0, ?, ?)
		 ON CONFLICT(shop_domain) DO NOTHING`,
		shop, now, now,
	)
	return eris.Wrapf(err, "sqlite: ensure account %s", shop)
}

func (s *SQLiteStore) GetBalance(ctx context.Context, shop string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE shop_domain = ?`, shop,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get balance %s", shop)
	}
	return balance, nil
}

func (s *SQLiteStore) TryDebit(ctx context.Context, shop string, amount int64, reason, relatedID string) (*model.CreditTransaction, error) {
	if amount <= 0 {
		return nil, eris.Errorf("sqlite: debit amount must be positive, got %d", amount)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin debit tx")
	}
	defer tx.Rollback()

	// Conditional decrement: matches only when the balance covers the
	// amount, so concurrent debits can never take it negative.
	res, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts SET balance = balance - ?, updated_at = ?
		 WHERE shop_domain = ? AND balance >= ?`,
		amount, now, shop, amount,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: debit %s", shop)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: debit rows affected")
	}
	if n == 0 {
		var available int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM credit_accounts WHERE shop_domain = ?`, shop,
		).Scan(&available)
		if err != nil && err != sql.ErrNoRows {
			return nil, eris.Wrapf(err, "sqlite: read balance %s", shop)
		}
		return nil, &model.InsufficientCreditsError{Required: amount, Available: available}
	}

	txn := model.CreditTransaction{
		ID:         uuid.New().String(),
		ShopDomain: shop,
		Delta:      -amount,
		Reason:     reason,
		RelatedID:  relatedID,
		CreatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, shop_domain, delta, reason, related_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.ShopDomain, txn.Delta, txn.Reason, nullable(txn.RelatedID), txn.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: append debit transaction")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit debit")
	}
	return &txn, nil
}

func (s *SQLiteStore) Credit(ctx context.Context, shop string, amount int64, reason, relatedID string) (*model.CreditTransaction, error) {
	if amount <= 0 {
		return nil, eris.Errorf("sqlite: credit amount must be positive, got %d", amount)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin credit tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_accounts (shop_domain, balance, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(shop_domain) DO UPDATE SET balance = balance + excluded.balance, updated_at = excluded.updated_at`,
		shop, amount, now, now,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: credit %s", shop)
	}

	txn := model.CreditTransaction{
		ID:         uuid.New().String(),
		ShopDomain: shop,
		Delta:      amount,
		Reason:     reason,
		RelatedID:  relatedID,
		CreatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, shop_domain, delta, reason, related_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.ShopDomain, txn.Delta, txn.Reason, nullable(txn.RelatedID), txn.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: append credit transaction")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit credit")
	}
	return &txn, nil
}

func (s *SQLiteStore) Transactions(ctx context.Context, shop string, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, shop_domain, delta, reason, related_id, created_at FROM credit_transactions
		 WHERE shop_domain = ? ORDER BY created_at DESC, id LIMIT ?`,
		shop, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list transactions %s", shop)
	}
	defer rows.Close()

	var txns []model.CreditTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, eris.Wrap(rows.Err(), "sqlite: list transactions iterate")
}

func (s *SQLiteStore) Reconcile(ctx context.Context, shop string) (*model.ReconcileReport, error) {
	balance, err := s.GetBalance(ctx, shop)
	if err != nil {
		return nil, err
	}

	var sum, count int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0), COUNT(*) FROM credit_transactions WHERE shop_domain = ?`,
		shop,
	).Scan(&sum, &count)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reconcile %s", shop)
	}

	return &model.ReconcileReport{
		ShopDomain:   shop,
		Balance:      balance,
		LedgerSum:    sum,
		Transactions: count,
		Consistent:   balance == sum,
	}, nil
}

// --- Optimization records ---

func (s *SQLiteStore) GetRecord(ctx context.Context, shop, productID string, typ model.OptimizationType) (*model.OptimizationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
		 FROM optimization_records WHERE shop_domain = ? AND product_id = ? AND type = ?`,
		shop, productID, string(typ),
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s/%s", shop, productID)
	}
	return rec, nil
}

func (s *SQLiteStore) GetRecordMap(ctx context.Context, shop string, typ model.OptimizationType) (map[string]model.OptimizationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
		 FROM optimization_records WHERE shop_domain = ? AND type = ?`,
		shop, string(typ),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: record map %s", shop)
	}
	defer rows.Close()

	recs := make(map[string]model.OptimizationRecord)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		recs[rec.ProductID] = *rec
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: record map iterate")
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec model.OptimizationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO optimization_records (shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(shop_domain, product_id, type) DO UPDATE SET
		   original_value = excluded.original_value,
		   optimized_value = excluded.optimized_value,
		   credits_used = excluded.credits_used,
		   applied_at = excluded.applied_at`,
		rec.ShopDomain, rec.ProductID, string(rec.Type), rec.OriginalValue, rec.OptimizedValue, rec.CreditsUsed, rec.AppliedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert record %s/%s", rec.ShopDomain, rec.ProductID)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, shop string, filter RecordFilter) ([]model.OptimizationRecord, error) {
	query := `SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
	          FROM optimization_records WHERE shop_domain = ?`
	args := []any{shop}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY applied_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list records %s", shop)
	}
	defer rows.Close()

	var recs []model.OptimizationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

// --- Store connections ---

func (s *SQLiteStore) UpsertStore(ctx context.Context, conn model.StoreConnection) error {
	now := time.Now().UTC()
	installedAt := conn.InstalledAt
	if installedAt.IsZero() {
		installedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_connections (shop_domain, access_token, scopes, api_version, installed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(shop_domain) DO UPDATE SET
		   access_token = excluded.access_token,
		   scopes = excluded.scopes,
		   api_version = excluded.api_version,
		   updated_at = excluded.updated_at`,
		conn.ShopDomain, conn.AccessToken, conn.Scopes, conn.APIVersion, installedAt, now,
	)
	return eris.Wrapf(err, "sqlite: upsert store %s", conn.ShopDomain)
}

func (s *SQLiteStore) GetStore(ctx context.Context, shop string) (*model.StoreConnection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT shop_domain, access_token, scopes, api_version, installed_at, updated_at
		 FROM store_connections WHERE shop_domain = ?`,
		shop,
	)
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get store %s", shop)
	}
	return conn, nil
}

func (s *SQLiteStore) ListStores(ctx context.Context) ([]model.StoreConnection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shop_domain, access_token, scopes, api_version, installed_at, updated_at
		 FROM store_connections ORDER BY shop_domain`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stores")
	}
	defer rows.Close()

	var conns []model.StoreConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan store")
		}
		conns = append(conns, *conn)
	}
	return conns, eris.Wrap(rows.Err(), "sqlite: list stores iterate")
}

// --- Reconciliation log ---

func (s *SQLiteStore) AppendReconciliation(ctx context.Context, entry model.ReconciliationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciliation_log (id, shop_domain, product_id, type, amount, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ShopDomain, entry.ProductID, string(entry.Type), entry.Amount, entry.Reason, entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append reconciliation %s/%s", entry.ShopDomain, entry.ProductID)
}

func (s *SQLiteStore) ListReconciliations(ctx context.Context, shop string, unresolvedOnly bool) ([]model.ReconciliationEntry, error) {
	query := `SELECT id, shop_domain, product_id, type, amount, reason, created_at, resolved_at
	          FROM reconciliation_log WHERE 1=1`
	var args []any

	if shop != "" {
		query += ` AND shop_domain = ?`
		args = append(args, shop)
	}
	if unresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reconciliations")
	}
	defer rows.Close()

	var entries []model.ReconciliationEntry
	for rows.Next() {
		e, err := scanReconciliation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reconciliation")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list reconciliations iterate")
}

func (s *SQLiteStore) ResolveReconciliation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reconciliation_log SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve reconciliation %s", id)
	}
	return checkRowsAffected(res, "reconciliation entry", id)
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTransaction(row scannable) (*model.CreditTransaction, error) {
	var txn model.CreditTransaction
	var relatedID sql.NullString

	err := row.Scan(&txn.ID, &txn.ShopDomain, &txn.Delta, &txn.Reason, &relatedID, &txn.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "scan transaction")
	}
	txn.RelatedID = relatedID.String
	return &txn, nil
}

func scanRecord(row scannable) (*model.OptimizationRecord, error) {
	var rec model.OptimizationRecord
	var typ string

	err := row.Scan(&rec.ShopDomain, &rec.ProductID, &typ, &rec.OriginalValue, &rec.OptimizedValue, &rec.CreditsUsed, &rec.AppliedAt)
	if err != nil {
		return nil, err
	}
	rec.Type = model.OptimizationType(typ)
	return &rec, nil
}

func scanConnection(row scannable) (*model.StoreConnection, error) {
	var conn model.StoreConnection
	err := row.Scan(&conn.ShopDomain, &conn.AccessToken, &conn.Scopes, &conn.APIVersion, &conn.InstalledAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func scanReconciliation(row scannable) (*model.ReconciliationEntry, error) {
	var e model.ReconciliationEntry
	var typ string
	var resolvedAt sql.NullTime

	err := row.Scan(&e.ID, &e.ShopDomain, &e.ProductID, &typ, &e.Amount, &e.Reason, &e.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	e.Type = model.OptimizationType(typ)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		e.ResolvedAt = &t
	}
	return &e, nil
}
