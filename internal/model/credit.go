package model

import "time"

// CreditAccount holds the spendable balance for one shop. The balance is
// mutated only through ledger operations and never goes negative.
type CreditAccount struct {
	ShopDomain string    `json:"shop_domain"`
	Balance    int64     `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreditTransaction is one append-only ledger entry. Delta is negative for
// debits and positive for credits. The sum of all deltas for an account
// must equal its current balance.
type CreditTransaction struct {
	ID         string    `json:"id"`
	ShopDomain string    `json:"shop_domain"`
	Delta      int64     `json:"delta"`
	Reason     string    `json:"reason"`
	RelatedID  string    `json:"related_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReconcileReport compares an account balance with the sum of its ledger
// entries.
type ReconcileReport struct {
	ShopDomain   string `json:"shop_domain"`
	Balance      int64  `json:"balance"`
	LedgerSum    int64  `json:"ledger_sum"`
	Transactions int64  `json:"transactions"`
	Consistent   bool   `json:"consistent"`
}

// ReconciliationEntry records a catalog mutation that committed externally
// but could not be billed because the balance was exhausted between the
// pre-check and the debit. Entries are written for manual follow-up and
// marked resolved once handled.
type ReconciliationEntry struct {
	ID         string           `json:"id"`
	ShopDomain string           `json:"shop_domain"`
	ProductID  string           `json:"product_id"`
	Type       OptimizationType `json:"type"`
	Amount     int64            `json:"amount"`
	Reason     string           `json:"reason"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}
