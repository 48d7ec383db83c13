// Package engine orchestrates listing optimizations: previewing suggested
// changes, applying them to the catalog with credit billing, and auditing
// which products still need work. Each operation is a sequential chain;
// the only concurrency is the bounded worker pool inside ApplyBulk.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/config"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/resilience"
	"github.com/glowcart/optimizer-cli/internal/store"
	"github.com/glowcart/optimizer-cli/internal/suggest"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// applyCost is the flat credit price of one applied optimization.
const applyCost int64 = 1

// Engine coordinates the store, the catalog gateway, and the suggestion
// provider. A nil provider puts the engine in fallback-only mode.
type Engine struct {
	store    store.Store
	gateway  shopify.Client
	provider suggest.Provider

	catalogTimeout time.Duration
	suggestTimeout time.Duration
	retry          resilience.RetryConfig
	bulkWorkers    int

	locks *keyLock
}

// New creates an Engine with all dependencies.
func New(cfg *config.Config, st store.Store, gateway shopify.Client, provider suggest.Provider) *Engine {
	catalogTimeout := time.Duration(cfg.Shopify.TimeoutSecs) * time.Second
	if catalogTimeout <= 0 {
		catalogTimeout = 15 * time.Second
	}
	suggestTimeout := time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second
	if suggestTimeout <= 0 {
		suggestTimeout = 15 * time.Second
	}

	retry := resilience.FromRetryConfig(
		cfg.Shopify.RetryAttempts,
		cfg.Shopify.RetryInitialBackoffMs,
		cfg.Shopify.RetryMaxBackoffMs,
		0, -1,
	)
	// Throttles and 5xx responses surface as ErrUnavailable; they are the
	// retryable class alongside transport-level failures.
	retry.ShouldRetry = func(err error) bool {
		return errors.Is(err, shopify.ErrUnavailable) || resilience.IsTransient(err)
	}

	return &Engine{
		store:          st,
		gateway:        gateway,
		provider:       provider,
		catalogTimeout: catalogTimeout,
		suggestTimeout: suggestTimeout,
		retry:          retry,
		bulkWorkers:    cfg.Engine.BulkWorkers,
		locks:          newKeyLock(),
	}
}

// connection resolves the shop's stored connection. Operating on a shop
// that never connected is a not-found, not an auth failure.
func (e *Engine) connection(ctx context.Context, shop string) (*model.StoreConnection, error) {
	conn, err := e.store.GetStore(ctx, shop)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, &model.NotFoundError{Resource: "store", ID: shop}
	}
	return conn, nil
}

func credentials(conn *model.StoreConnection) shopify.Credentials {
	return shopify.Credentials{
		Domain:      conn.ShopDomain,
		AccessToken: conn.AccessToken,
		APIVersion:  conn.APIVersion,
	}
}

// fetchProduct reads the current product state with bounded retries on
// transient gateway failures.
func (e *Engine) fetchProduct(ctx context.Context, creds shopify.Credentials, shop, productID string) (*shopify.Product, error) {
	product, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*shopify.Product, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
		return e.gateway.GetProduct(callCtx, creds, productID)
	})
	if err != nil {
		return nil, mapCatalogErr(err, shop, productID)
	}
	return product, nil
}

// generateSuggestion resolves the proposed value for one type. Provider
// failures are logged and answered with the deterministic fallback, so
// this never fails.
func (e *Engine) generateSuggestion(ctx context.Context, typ model.OptimizationType, product *shopify.Product) *model.SuggestionResult {
	original := suggest.OriginalValue(typ, product)

	if e.provider != nil {
		genCtx, cancel := context.WithTimeout(ctx, e.suggestTimeout)
		proposed, err := e.provider.Generate(genCtx, typ, product)
		cancel()
		if err == nil {
			return &model.SuggestionResult{
				Type:          typ,
				OriginalValue: original,
				ProposedValue: proposed,
				Source:        model.SourceGenerated,
			}
		}
		zap.L().Warn("engine: suggestion provider failed, using fallback",
			zap.String("product", product.IDString()),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}

	return &model.SuggestionResult{
		Type:          typ,
		OriginalValue: original,
		ProposedValue: suggest.Fallback(typ, product),
		Source:        model.SourceFallback,
	}
}
