// Package suggest produces replacement values for a product's title,
// description, pricing, or keywords. The Claude-backed provider is the
// primary path; every type also has a deterministic local fallback so a
// provider failure never blocks an optimization.
package suggest

import (
	"context"
	"errors"

	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// Provider generates a proposed value for one optimization type. The
// caller owns fallback handling: any error from Generate means "use the
// deterministic fallback", never a user-visible failure.
type Provider interface {
	Generate(ctx context.Context, typ model.OptimizationType, product *shopify.Product) (string, error)
}

var (
	// ErrTimeout means the provider did not answer within its deadline.
	ErrTimeout = errors.New("suggestion timed out")

	// ErrQuotaExceeded means the provider refused the call for rate or
	// quota reasons.
	ErrQuotaExceeded = errors.New("suggestion quota exceeded")

	// ErrInvalidOutput means the provider answered but the content failed
	// shape validation (empty, over the length cap, or unparseable).
	ErrInvalidOutput = errors.New("suggestion output invalid")
)

// OriginalValue returns the product's current value for a type, used as
// the "before" side of an optimization record.
func OriginalValue(typ model.OptimizationType, p *shopify.Product) string {
	switch typ {
	case model.TypeTitle:
		return p.Title
	case model.TypeDescription:
		return p.BodyHTML
	case model.TypePricing:
		if len(p.Variants) > 0 {
			return p.Variants[0].Price
		}
		return ""
	case model.TypeKeywords:
		return p.Tags
	default:
		return ""
	}
}
