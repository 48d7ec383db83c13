package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// OptimizationType is the dimension along which a listing can be improved.
type OptimizationType string

const (
	TypeTitle       OptimizationType = "title"
	TypeDescription OptimizationType = "description"
	TypePricing     OptimizationType = "pricing"
	TypeKeywords    OptimizationType = "keywords"
)

// AllTypes lists every optimization type in display order.
func AllTypes() []OptimizationType {
	return []OptimizationType{TypeTitle, TypeDescription, TypePricing, TypeKeywords}
}

// ParseType validates a user-supplied optimization type string.
func ParseType(s string) (OptimizationType, error) {
	switch OptimizationType(s) {
	case TypeTitle, TypeDescription, TypePricing, TypeKeywords:
		return OptimizationType(s), nil
	}
	return "", eris.Errorf("unknown optimization type %q (want title, description, pricing, or keywords)", s)
}

// SuggestionSource records whether a suggestion came from the generative
// provider or from the deterministic fallback.
type SuggestionSource string

const (
	SourceGenerated SuggestionSource = "generated"
	SourceFallback  SuggestionSource = "fallback"
)

// SuggestionResult is a proposed value for one optimization type. It is
// ephemeral; nothing persists it except as part of an OptimizationRecord
// after a successful apply.
type SuggestionResult struct {
	Type          OptimizationType `json:"type"`
	OriginalValue string           `json:"original_value"`
	ProposedValue string           `json:"proposed_value"`
	Source        SuggestionSource `json:"source"`
}

// OptimizationRecord is the durable "latest applied change" entry for a
// (shop, product, type) key. A later apply overwrites the prior record for
// the same key.
type OptimizationRecord struct {
	ShopDomain     string           `json:"shop_domain"`
	ProductID      string           `json:"product_id"`
	Type           OptimizationType `json:"type"`
	OriginalValue  string           `json:"original_value"`
	OptimizedValue string           `json:"optimized_value"`
	CreditsUsed    int64            `json:"credits_used"`
	AppliedAt      time.Time        `json:"applied_at"`
}

// PreviewResult is returned by the read-only preview operation.
type PreviewResult struct {
	ProductID  string            `json:"product_id"`
	Title      string            `json:"title"`
	Suggestion *SuggestionResult `json:"suggestion"`
}

// ApplyResult is returned by a single apply.
//
// Applied reports that the catalog mutation committed. Billed reports that
// a credit was debited for it; the two can diverge when the balance was
// exhausted between the pre-check and the debit.
type ApplyResult struct {
	ProductID   string            `json:"product_id"`
	Applied     bool              `json:"applied"`
	Billed      bool              `json:"billed"`
	CreditsUsed int64             `json:"credits_used"`
	Suggestion  *SuggestionResult `json:"suggestion"`
}

// BulkFailure describes one product that could not be optimized during a
// bulk apply.
type BulkFailure struct {
	ProductID string `json:"product_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// BulkResult aggregates a bulk apply. Failures never abort the batch; they
// are collected here.
type BulkResult struct {
	AppliedCount int64         `json:"applied_count"`
	CreditsUsed  int64         `json:"credits_used"`
	Failures     []BulkFailure `json:"failures"`
}

// AuditEntry is one product's classification joined with its apply history.
// NeedsByRule and HasRecord are independent: a product can be excluded from
// a work list either because the rule says it is fine or because a record
// shows it was already optimized.
type AuditEntry struct {
	ProductID   string              `json:"product_id"`
	Title       string              `json:"title"`
	NeedsByRule bool                `json:"needs_by_rule"`
	RuleReason  string              `json:"rule_reason,omitempty"`
	HasRecord   bool                `json:"has_record"`
	Record      *OptimizationRecord `json:"record,omitempty"`
}

// AuditResult summarizes a catalog audit for one optimization type.
type AuditResult struct {
	ShopDomain string           `json:"shop_domain"`
	Type       OptimizationType `json:"type"`
	Total      int              `json:"total"`
	NeedsWork  int              `json:"needs_work"`
	Recorded   int              `json:"recorded"`
	Entries    []AuditEntry     `json:"entries"`
}
