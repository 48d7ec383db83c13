package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/cost"
	"github.com/glowcart/optimizer-cli/internal/engine"
	"github.com/glowcart/optimizer-cli/internal/store"
	"github.com/glowcart/optimizer-cli/internal/suggest"
	anthropicpkg "github.com/glowcart/optimizer-cli/pkg/anthropic"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// engineEnv holds the initialized store, clients, and engine needed by the
// optimize/serve commands.
type engineEnv struct {
	Store   store.Store
	Engine  *engine.Engine
	Gateway shopify.Client
	Tracker *cost.Tracker
}

// Close releases resources held by the engine environment.
func (ee *engineEnv) Close() {
	if ee.Store != nil {
		_ = ee.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "optimizer.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and applies migrations. Migrations
// are idempotent, so every command path runs them.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEngine sets up the store, the Shopify gateway, the suggestion
// provider, and builds the Engine. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	gateway := shopify.NewClient(
		shopify.WithAPIVersion(cfg.Shopify.APIVersion),
		shopify.WithRateLimit(cfg.Shopify.RateLimitPerSec),
	)

	tracker := cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))

	// Suggestion provider (optional — fallback-only mode without a key).
	var provider suggest.Provider
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("OPTIMIZER_ANTHROPIC_KEY not set, suggestions use deterministic fallbacks")
	} else {
		limits := suggest.DefaultLimits()
		if cfg.Suggest.LimitsPath != "" {
			loaded, lErr := suggest.LoadLimits(cfg.Suggest.LimitsPath)
			if lErr != nil {
				zap.L().Warn("suggestion limits not loaded, using defaults", zap.Error(lErr))
			} else {
				limits = loaded
			}
		}
		provider = suggest.NewClaude(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic, limits, tracker)
		zap.L().Info("claude suggestions enabled", zap.String("model", cfg.Anthropic.Model))
	}

	return &engineEnv{
		Store:   st,
		Engine:  engine.New(cfg, st, gateway, provider),
		Gateway: gateway,
		Tracker: tracker,
	}, nil
}
