package engine

import (
	"context"
	"errors"

	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// ErrorCode maps an error chain onto the structured code the CLI and the
// HTTP facade surface to callers. Anything unrecognized is INTERNAL.
func ErrorCode(err error) string {
	var (
		credits    *model.InsufficientCreditsError
		permDenied *model.PermissionError
		expired    *model.AuthExpiredError
		notFound   *model.NotFoundError
		invalid    *model.ValidationError
		rejected   *shopify.ValidationError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &credits):
		return model.CodeInsufficientCredits
	case errors.As(err, &permDenied):
		return model.CodeInsufficientPermissions
	case errors.As(err, &expired):
		return model.CodeAuthExpired
	case errors.As(err, &notFound):
		return model.CodeNotFound
	case errors.As(err, &invalid), errors.As(err, &rejected):
		return model.CodeValidation
	case errors.Is(err, shopify.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return model.CodeCatalogUnavailable
	}
	return model.CodeInternal
}

// mapCatalogErr rewrites gateway sentinels into the typed errors callers
// branch on. Unavailability and validation errors pass through unchanged.
func mapCatalogErr(err error, shop, productID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shopify.ErrNotFound):
		return &model.NotFoundError{Resource: "product", ID: productID}
	case errors.Is(err, shopify.ErrUnauthorized):
		return &model.AuthExpiredError{ShopDomain: shop}
	case errors.Is(err, shopify.ErrForbidden):
		return &model.PermissionError{Scope: model.ScopeWriteProducts, NeedsReconnection: true}
	}
	return err
}
