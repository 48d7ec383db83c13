package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

const (
	defaultBulkWorkers = 4
	maxBulkWorkers     = 8
)

// BulkRequest asks for one optimization type across many products.
// Workers overrides the configured pool size when positive.
type BulkRequest struct {
	Shop       string
	Type       model.OptimizationType
	ProductIDs []string
	Workers    int
}

// ApplyBulk runs the single-apply sequence across the batch under a
// bounded worker pool. Item failures are collected, never fatal; the
// batch errors only up front (bad input, balance below the batch size)
// or when a store-level failure aborts it before any item succeeded. In
// the abort case the partial result is returned alongside the error so
// callers can still render what happened.
func (e *Engine) ApplyBulk(ctx context.Context, req BulkRequest) (*model.BulkResult, error) {
	if len(req.ProductIDs) == 0 {
		return nil, &model.ValidationError{Field: "product_ids", Message: "at least one product is required"}
	}

	conn, err := e.connection(ctx, req.Shop)
	if err != nil {
		return nil, err
	}

	// Pre-flight: the balance must cover the whole batch before any item
	// runs. Per-item debits remain the authoritative spend.
	balance, err := e.store.GetBalance(ctx, req.Shop)
	if err != nil {
		return nil, err
	}
	required := int64(len(req.ProductIDs)) * applyCost
	if balance < required {
		return nil, &model.InsufficientCreditsError{Required: required, Available: balance}
	}

	log := zap.L().With(
		zap.String("shop", req.Shop),
		zap.String("type", string(req.Type)),
		zap.Int("products", len(req.ProductIDs)),
	)

	var (
		mu       sync.Mutex
		applied  int64
		credits  int64
		failures []model.BulkFailure
		abortErr error
	)

	fail := func(id, code, reason string) {
		mu.Lock()
		failures = append(failures, model.BulkFailure{ProductID: id, Code: code, Reason: reason})
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(normalizeWorkers(req.Workers, e.bulkWorkers))

	for _, productID := range req.ProductIDs {
		g.Go(func() error {
			// Abort latch and caller cancellation are observed at item
			// boundaries; in-flight items run to completion.
			mu.Lock()
			latched := abortErr
			mu.Unlock()
			if latched != nil {
				fail(productID, ErrorCode(latched), "not attempted: "+latched.Error())
				return nil
			}
			if ctxErr := gCtx.Err(); ctxErr != nil {
				fail(productID, "CANCELLED", "not attempted: "+ctxErr.Error())
				return nil
			}

			res, err := e.apply(gCtx, conn, ApplyRequest{
				Shop:      req.Shop,
				ProductID: productID,
				Type:      req.Type,
			})
			if err != nil {
				fail(productID, ErrorCode(err), err.Error())
				if storeLevel(err) {
					mu.Lock()
					if abortErr == nil {
						abortErr = err
					}
					mu.Unlock()
				}
				return nil
			}

			mu.Lock()
			applied++
			credits += res.CreditsUsed
			mu.Unlock()
			return nil
		})
	}
	// Item errors are folded into failures above; nothing propagates.
	_ = g.Wait()

	result := &model.BulkResult{
		AppliedCount: applied,
		CreditsUsed:  credits,
		Failures:     failures,
	}

	log.Info("engine: bulk apply finished",
		zap.Int64("applied", applied),
		zap.Int64("credits_used", credits),
		zap.Int("failures", len(failures)),
	)

	if abortErr != nil && applied == 0 {
		return result, abortErr
	}
	return result, nil
}

// storeLevel reports whether an item failure condemns the whole
// connection, so every remaining item would fail identically.
func storeLevel(err error) bool {
	var expired *model.AuthExpiredError
	if errors.As(err, &expired) {
		return true
	}
	var permDenied *model.PermissionError
	if errors.As(err, &permDenied) && permDenied.NeedsReconnection {
		return true
	}
	return shopify.StoreLevel(err)
}

func normalizeWorkers(requested, configured int) int {
	workers := requested
	if workers <= 0 {
		workers = configured
	}
	if workers <= 0 {
		workers = defaultBulkWorkers
	}
	if workers > maxBulkWorkers {
		workers = maxBulkWorkers
	}
	return workers
}
