package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/glowcart/optimizer-cli/internal/db"
	"github.com/glowcart/optimizer-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot apply-path operations.
var preparedStatements = map[string]string{
	"get_balance": `SELECT balance FROM credit_accounts WHERE shop_domain = $1`,
	"try_debit": `UPDATE credit_accounts SET balance = balance - $1, updated_at = $2
	 WHERE shop_domain = $3 AND balance >= $1`,
	"append_transaction": `INSERT INTO credit_transactions (id, shop_domain, delta, reason, related_id, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_record": `SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
	 FROM optimization_records WHERE shop_domain = $1 AND product_id = $2 AND type = $3`,
	"get_store": `SELECT shop_domain, access_token, scopes, api_version, installed_at, updated_at
	 FROM store_connections WHERE shop_domain = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	shop_domain TEXT PRIMARY KEY,
	balance     BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          TEXT PRIMARY KEY,
	shop_domain TEXT NOT NULL REFERENCES credit_accounts(shop_domain),
	delta       BIGINT NOT NULL,
	reason      TEXT NOT NULL,
	related_id  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS optimization_records (
	shop_domain     TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	type            TEXT NOT NULL,
	original_value  TEXT NOT NULL,
	optimized_value TEXT NOT NULL,
	credits_used    BIGINT NOT NULL DEFAULT 0,
	applied_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (shop_domain, product_id, type)
);

CREATE TABLE IF NOT EXISTS store_connections (
	shop_domain  TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	scopes       TEXT NOT NULL DEFAULT '',
	api_version  TEXT NOT NULL DEFAULT '',
	installed_at TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reconciliation_log (
	id          TEXT PRIMARY KEY,
	shop_domain TEXT NOT NULL,
	product_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	amount      BIGINT NOT NULL,
	reason      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_credit_tx_shop ON credit_transactions(shop_domain, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_shop_type ON optimization_records(shop_domain, type);
CREATE INDEX IF NOT EXISTS idx_recon_shop ON reconciliation_log(shop_domain);
CREATE INDEX IF NOT EXISTS idx_recon_open ON reconciliation_log(resolved_at) WHERE resolved_at IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Credit ledger ---

func (s *PostgresStore) EnsureAccount(ctx context.Context, shop string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credit_accounts (shop_domain, balance, created_at, updated_at) VALUES ($1, 0, $2, $3)
		 ON CONFLICT (shop_domain) DO NOTHING`,
		shop, now, now,
	)
	return eris.Wrapf(err, "postgres: ensure account %s", shop)
}

func (s *PostgresStore) GetBalance(ctx context.Context, shop string) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE shop_domain = $1`, shop,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get balance %s", shop)
	}
	return balance, nil
}

func (s *PostgresStore) TryDebit(ctx context.Context, shop string, amount int64, reason, relatedID string) (*model.CreditTransaction, error) {
	if amount <= 0 {
		return nil, eris.Errorf("postgres: debit amount must be positive, got %d", amount)
	}
	now := time.Now().UTC()
	txn := model.CreditTransaction{
		ID:         uuid.New().String(),
		ShopDomain: shop,
		Delta:      -amount,
		Reason:     reason,
		RelatedID:  relatedID,
		CreatedAt:  now,
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE credit_accounts SET balance = balance - $1, updated_at = $2
			 WHERE shop_domain = $3 AND balance >= $1`,
			amount, now, shop,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: debit %s", shop)
		}
		if tag.RowsAffected() == 0 {
			var available int64
			err := tx.QueryRow(ctx,
				`SELECT balance FROM credit_accounts WHERE shop_domain = $1`, shop,
			).Scan(&available)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return eris.Wrapf(err, "postgres: read balance %s", shop)
			}
			return &model.InsufficientCreditsError{Required: amount, Available: available}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO credit_transactions (id, shop_domain, delta, reason, related_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			txn.ID, txn.ShopDomain, txn.Delta, txn.Reason, nullable(txn.RelatedID), txn.CreatedAt,
		)
		return eris.Wrap(err, "postgres: append debit transaction")
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *PostgresStore) Credit(ctx context.Context, shop string, amount int64, reason, relatedID string) (*model.CreditTransaction, error) {
	if amount <= 0 {
		return nil, eris.Errorf("postgres: credit amount must be positive, got %d", amount)
	}
	now := time.Now().UTC()
	txn := model.CreditTransaction{
		ID:         uuid.New().String(),
		ShopDomain: shop,
		Delta:      amount,
		Reason:     reason,
		RelatedID:  relatedID,
		CreatedAt:  now,
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO credit_accounts (shop_domain, balance, created_at, updated_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (shop_domain) DO UPDATE SET balance = credit_accounts.balance + excluded.balance, updated_at = excluded.updated_at`,
			shop, amount, now, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: credit %s", shop)
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO credit_transactions (id, shop_domain, delta, reason, related_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			txn.ID, txn.ShopDomain, txn.Delta, txn.Reason, nullable(txn.RelatedID), txn.CreatedAt,
		)
		return eris.Wrap(err, "postgres: append credit transaction")
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *PostgresStore) Transactions(ctx context.Context, shop string, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, shop_domain, delta, reason, related_id, created_at FROM credit_transactions
		 WHERE shop_domain = $1 ORDER BY created_at DESC, id LIMIT $2`,
		shop, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list transactions %s", shop)
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
	return txns, eris.Wrap(rows.Err(), "postgres: list transactions iterate")
}

func (s *PostgresStore) Reconcile(ctx context.Context, shop string) (*model.ReconcileReport, error) {
	balance, err := s.GetBalance(ctx, shop)
	if err != nil {
		return nil, err
	}

	var sum, count int64
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(delta), 0), COUNT(*) FROM credit_transactions WHERE shop_domain = $1`,
		shop,
	).Scan(&sum, &count)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: reconcile %s", shop)
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

func (s *PostgresStore) GetRecord(ctx context.Context, shop, productID string, typ model.OptimizationType) (*model.OptimizationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
		 FROM optimization_records WHERE shop_domain = $1 AND product_id = $2 AND type = $3`,
		shop, productID, string(typ),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s/%s", shop, productID)
	}
	return rec, nil
}

func (s *PostgresStore) GetRecordMap(ctx context.Context, shop string, typ model.OptimizationType) (map[string]model.OptimizationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
		 FROM optimization_records WHERE shop_domain = $1 AND type = $2`,
		shop, string(typ),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: record map %s", shop)
	}
	defer rows.Close()

	recs := make(map[string]model.OptimizationRecord)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		recs[rec.ProductID] = *rec
	}
	return recs, eris.Wrap(rows.Err(), "postgres: record map iterate")
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec model.OptimizationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO optimization_records (shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (shop_domain, product_id, type) DO UPDATE SET
		   original_value = excluded.original_value,
		   optimized_value = excluded.optimized_value,
		   credits_used = excluded.credits_used,
		   applied_at = excluded.applied_at`,
		rec.ShopDomain, rec.ProductID, string(rec.Type), rec.OriginalValue, rec.OptimizedValue, rec.CreditsUsed, rec.AppliedAt,
	)
	return eris.Wrapf(err, "postgres: upsert record %s/%s", rec.ShopDomain, rec.ProductID)
}

func (s *PostgresStore) ListRecords(ctx context.Context, shop string, filter RecordFilter) ([]model.OptimizationRecord, error) {
	query := `SELECT shop_domain, product_id, type, original_value, optimized_value, credits_used, applied_at
	          FROM optimization_records WHERE shop_domain = $1`
	args := []any{shop}
	argIdx := 2

	if filter.Type != "" {
		query += ` AND type = $2`
		args = append(args, string(filter.Type))
		argIdx++
	}
	query += ` ORDER BY applied_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list records %s", shop)
	}
	defer rows.Close()

	var recs []model.OptimizationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

// --- Store connections ---

func (s *PostgresStore) UpsertStore(ctx context.Context, conn model.StoreConnection) error {
	now := time.Now().UTC()
	installedAt := conn.InstalledAt
	if installedAt.IsZero() {
		installedAt = now
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO store_connections (shop_domain, access_token, scopes, api_version, installed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (shop_domain) DO UPDATE SET
		   access_token = excluded.access_token,
		   scopes = excluded.scopes,
		   api_version = excluded.api_version,
		   updated_at = excluded.updated_at`,
		conn.ShopDomain, conn.AccessToken, conn.Scopes, conn.APIVersion, installedAt, now,
	)
	return eris.Wrapf(err, "postgres: upsert store %s", conn.ShopDomain)
}

func (s *PostgresStore) GetStore(ctx context.Context, shop string) (*model.StoreConnection, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT shop_domain, access_token, scopes, api_version, installed_at, updated_at
		 FROM store_connections WHERE shop_domain = $1`,
		shop,
	)
	conn, err := scanConnection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get store %s", shop)
	}
	return conn, nil
}

func (s *PostgresStore) ListStores(ctx context.Context) ([]model.StoreConnection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT shop_domain, access_token, scopes, api_version, installed_at, updated_at
		 FROM store_connections ORDER BY shop_domain`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stores")
	}
	defer rows.Close()

	var conns []model.StoreConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan store")
		}
		conns = append(conns, *conn)
	}
	return conns, eris.Wrap(rows.Err(), "postgres: list stores iterate")
}

// --- Reconciliation log ---

func (s *PostgresStore) AppendReconciliation(ctx context.Context, entry model.ReconciliationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reconciliation_log (id, shop_domain, product_id, type, amount, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.ShopDomain, entry.ProductID, string(entry.Type), entry.Amount, entry.Reason, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append reconciliation %s/%s", entry.ShopDomain, entry.ProductID)
}

func (s *PostgresStore) ListReconciliations(ctx context.Context, shop string, unresolvedOnly bool) ([]model.ReconciliationEntry, error) {
	query := `SELECT id, shop_domain, product_id, type, amount, reason, created_at, resolved_at
	          FROM reconciliation_log WHERE true`
	var args []any
	argIdx := 1

	if shop != "" {
		query += fmt.Sprintf(` AND shop_domain = $%d`, argIdx)
		args = append(args, shop)
		argIdx++
	}
	if unresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reconciliations")
	}
	defer rows.Close()

	var entries []model.ReconciliationEntry
	for rows.Next() {
		e, err := scanReconciliation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan reconciliation")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list reconciliations iterate")
}

func (s *PostgresStore) ResolveReconciliation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reconciliation_log SET resolved_at = $1 WHERE id = $2 AND resolved_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve reconciliation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("reconciliation entry not found: %s", id)
	}
	return nil
}
