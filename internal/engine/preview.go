package engine

import (
	"context"

	"github.com/glowcart/optimizer-cli/internal/model"
)

// Preview fetches the product and returns the suggested change without
// mutating anything: no catalog write, no debit, no record. The returned
// suggestion can be handed back to ApplySingle to apply exactly what was
// shown.
func (e *Engine) Preview(ctx context.Context, shop, productID string, typ model.OptimizationType) (*model.PreviewResult, error) {
	conn, err := e.connection(ctx, shop)
	if err != nil {
		return nil, err
	}

	product, err := e.fetchProduct(ctx, credentials(conn), shop, productID)
	if err != nil {
		return nil, err
	}

	return &model.PreviewResult{
		ProductID:  product.IDString(),
		Title:      product.Title,
		Suggestion: e.generateSuggestion(ctx, typ, product),
	}, nil
}
