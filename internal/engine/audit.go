package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/classifier"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/resilience"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// Audit classifies every catalog product for one optimization type and
// joins the verdicts with the applied-change records. The two exclusion
// views stay independent in each entry: NeedsByRule is what the rule says
// today, HasRecord is what was already applied; callers pick their own
// combination (bulk --from-audit takes NeedsByRule && !HasRecord).
func (e *Engine) Audit(ctx context.Context, shop string, typ model.OptimizationType) (*model.AuditResult, error) {
	conn, err := e.connection(ctx, shop)
	if err != nil {
		return nil, err
	}

	products, err := e.listProducts(ctx, credentials(conn), shop)
	if err != nil {
		return nil, err
	}

	records, err := e.store.GetRecordMap(ctx, shop, typ)
	if err != nil {
		return nil, err
	}

	result := &model.AuditResult{
		ShopDomain: shop,
		Type:       typ,
		Total:      len(products),
	}
	for i := range products {
		p := &products[i]
		verdict := classifier.Evaluate(p, typ)

		entry := model.AuditEntry{
			ProductID:   p.IDString(),
			Title:       p.Title,
			NeedsByRule: verdict.Needs,
			RuleReason:  verdict.Reason,
		}
		if rec, ok := records[entry.ProductID]; ok {
			entry.HasRecord = true
			entry.Record = &rec
			result.Recorded++
		}
		if verdict.Needs {
			result.NeedsWork++
		}
		result.Entries = append(result.Entries, entry)
	}

	zap.L().Info("engine: audit finished",
		zap.String("shop", shop),
		zap.String("type", string(typ)),
		zap.Int("total", result.Total),
		zap.Int("needs_work", result.NeedsWork),
		zap.Int("recorded", result.Recorded),
	)
	return result, nil
}

// listProducts pages through the full catalog with bounded retries.
func (e *Engine) listProducts(ctx context.Context, creds shopify.Credentials, shop string) ([]shopify.Product, error) {
	products, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) ([]shopify.Product, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
		return e.gateway.ListProducts(callCtx, creds, shopify.ListOptions{})
	})
	if err != nil {
		return nil, mapCatalogErr(err, shop, "")
	}
	return products, nil
}
