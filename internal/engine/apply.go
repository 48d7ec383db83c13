package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/classifier"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/permission"
	"github.com/glowcart/optimizer-cli/internal/resilience"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// ApplyRequest asks for one optimization to be applied. Suggestion and
// Product carry state from a prior Preview; when nil the engine refetches
// and regenerates, so a bare {Shop, ProductID, Type} request is complete.
type ApplyRequest struct {
	Shop       string
	ProductID  string
	Type       model.OptimizationType
	Suggestion *model.SuggestionResult
	Product    *shopify.Product
}

// ApplySingle runs the full apply sequence for one product: scope gate,
// balance pre-check, fetch, suggestion, catalog mutation, debit, record.
// A mutation that commits but cannot be billed is NOT an error; the
// result reports Applied=true Billed=false and a reconciliation entry is
// written for follow-up.
func (e *Engine) ApplySingle(ctx context.Context, req ApplyRequest) (*model.ApplyResult, error) {
	conn, err := e.connection(ctx, req.Shop)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, conn, req)
}

// apply is the per-item body shared by ApplySingle and ApplyBulk; the
// caller has already resolved the connection.
func (e *Engine) apply(ctx context.Context, conn *model.StoreConnection, req ApplyRequest) (*model.ApplyResult, error) {
	log := zap.L().With(
		zap.String("shop", req.Shop),
		zap.String("product", req.ProductID),
		zap.String("type", string(req.Type)),
	)

	// Nothing may mutate without the write scope.
	if err := permission.RequireWriteScope(conn); err != nil {
		return nil, err
	}

	// Fast fail before any catalog traffic. The atomic debit below stays
	// the authoritative check; this one only saves a round trip.
	balance, err := e.store.GetBalance(ctx, req.Shop)
	if err != nil {
		return nil, err
	}
	if balance < applyCost {
		return nil, &model.InsufficientCreditsError{Required: applyCost, Available: balance}
	}

	// Serialize concurrent applies to the same target so the mutation,
	// the debit, and the record stay one logical unit per key.
	unlock := e.locks.lock(lockKey{shop: req.Shop, productID: req.ProductID, typ: req.Type})
	defer unlock()

	product := req.Product
	if product == nil {
		product, err = e.fetchProduct(ctx, credentials(conn), req.Shop, req.ProductID)
		if err != nil {
			return nil, err
		}
	}

	suggestion := req.Suggestion
	if suggestion == nil {
		suggestion = e.generateSuggestion(ctx, req.Type, product)
	}

	patch, err := buildPatch(req.Type, product, suggestion.ProposedValue)
	if err != nil {
		return nil, err
	}

	// Catalog mutation. Failure here means nothing was spent and nothing
	// is recorded.
	if err := e.mutateProduct(ctx, credentials(conn), req.Shop, req.ProductID, patch); err != nil {
		return nil, err
	}

	result := &model.ApplyResult{
		ProductID:  req.ProductID,
		Applied:    true,
		Suggestion: suggestion,
	}

	// The mutation is live; a failed debit from here on is a billing
	// miss, not a user-facing failure.
	if _, err := e.store.TryDebit(ctx, req.Shop, applyCost, "optimization_applied", req.ProductID); err != nil {
		e.recordBillingMiss(ctx, log, req, err)
		return result, nil
	}
	result.Billed = true
	result.CreditsUsed = applyCost

	rec := model.OptimizationRecord{
		ShopDomain:     req.Shop,
		ProductID:      req.ProductID,
		Type:           req.Type,
		OriginalValue:  suggestion.OriginalValue,
		OptimizedValue: suggestion.ProposedValue,
		CreditsUsed:    applyCost,
		AppliedAt:      time.Now().UTC(),
	}
	if err := e.store.UpsertRecord(ctx, rec); err != nil {
		log.Error("engine: record write failed after billed apply", zap.Error(err))
	}

	log.Info("engine: optimization applied",
		zap.String("source", string(suggestion.Source)),
		zap.Bool("billed", result.Billed),
	)
	return result, nil
}

// recordBillingMiss handles a debit that failed after the catalog write
// committed. The mutation stands; the miss is logged loudly and appended
// to the durable reconciliation log for manual follow-up.
func (e *Engine) recordBillingMiss(ctx context.Context, log *zap.Logger, req ApplyRequest, debitErr error) {
	log.Error("engine: optimization applied but not billed", zap.Error(debitErr))

	entry := model.ReconciliationEntry{
		ShopDomain: req.Shop,
		ProductID:  req.ProductID,
		Type:       req.Type,
		Amount:     applyCost,
		Reason:     "debit failed after catalog mutation: " + debitErr.Error(),
	}
	if err := e.store.AppendReconciliation(ctx, entry); err != nil {
		log.Error("engine: reconciliation append failed", zap.Error(err))
	}
}

// mutateProduct writes the patch with bounded retries on transient
// gateway failures.
func (e *Engine) mutateProduct(ctx context.Context, creds shopify.Credentials, shop, productID string, patch shopify.Patch) error {
	err := resilience.Do(ctx, e.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
		return e.gateway.UpdateProduct(callCtx, creds, productID, patch)
	})
	return mapCatalogErr(err, shop, productID)
}

// buildPatch turns a proposed value into the typed mutation payload for
// its optimization type.
func buildPatch(typ model.OptimizationType, p *shopify.Product, value string) (shopify.Patch, error) {
	switch typ {
	case model.TypeTitle:
		return shopify.TitlePatch{Title: value}, nil
	case model.TypeDescription:
		return shopify.DescriptionPatch{BodyHTML: value}, nil
	case model.TypeKeywords:
		return shopify.TagsPatch{Tags: value}, nil
	case model.TypePricing:
		_, variant, ok := classifier.PrimaryPrice(p)
		if !ok {
			return nil, &model.ValidationError{Field: "type", Message: "product has no priced variant to optimize"}
		}
		return shopify.PricePatch{VariantID: variant.ID, Price: value}, nil
	}
	return nil, &model.ValidationError{Field: "type", Message: "unknown optimization type " + string(typ)}
}
