// Package classifier decides whether a catalog product needs optimization
// along a given dimension. Rules are pure and deterministic so the same
// product always classifies the same way, independent of what has already
// been applied. "Has a record" and "rule says fine" are separate views;
// callers that need the former consult the record store.
package classifier

import (
	"math"
	"strconv"
	"strings"

	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// Result reports one rule evaluation. Reason names the first rule that
// fired, empty when the product passes.
type Result struct {
	Needs  bool
	Reason string
}

// Evaluate runs the rule set for one optimization type against a product.
func Evaluate(p *shopify.Product, typ model.OptimizationType) Result {
	switch typ {
	case model.TypeTitle:
		return evalTitle(p)
	case model.TypeDescription:
		return evalDescription(p)
	case model.TypePricing:
		return evalPricing(p)
	case model.TypeKeywords:
		return evalKeywords(p)
	default:
		return Result{}
	}
}

func evalTitle(p *shopify.Product) Result {
	title := p.Title
	switch {
	case len(title) < 30:
		return Result{Needs: true, Reason: "title shorter than 30 characters"}
	case len(title) > 70:
		return Result{Needs: true, Reason: "title longer than 70 characters"}
	case !strings.Contains(title, p.ProductType):
		return Result{Needs: true, Reason: "title missing product type"}
	case title == strings.ToUpper(title):
		return Result{Needs: true, Reason: "title is all uppercase"}
	}
	return Result{}
}

func evalDescription(p *shopify.Product) Result {
	if p.BodyHTML == "" {
		return Result{Needs: true, Reason: "description empty"}
	}
	plain := PlainText(p.BodyHTML)
	switch {
	case len(plain) < 100:
		return Result{Needs: true, Reason: "description under 100 characters"}
	case !strings.Contains(plain, "benefits"):
		return Result{Needs: true, Reason: "description does not mention benefits"}
	case !strings.Contains(plain, "features"):
		return Result{Needs: true, Reason: "description does not mention features"}
	}
	return Result{}
}

func evalPricing(p *shopify.Product) Result {
	price, variant, ok := PrimaryPrice(p)
	if !ok {
		// No parseable price means nothing to optimize.
		return Result{}
	}
	switch {
	case math.Mod(price, 1) == 0:
		return Result{Needs: true, Reason: "price has no fractional cents"}
	case variant.CompareAtPrice == "":
		return Result{Needs: true, Reason: "no compare-at price set"}
	}
	return Result{}
}

func evalKeywords(p *shopify.Product) Result {
	tags := p.Tags
	switch {
	case tags == "":
		return Result{Needs: true, Reason: "no tags"}
	case len(tags) < 5:
		return Result{Needs: true, Reason: "tags shorter than 5 characters"}
	case !strings.Contains(tags, ","):
		return Result{Needs: true, Reason: "fewer than two tags"}
	}
	return Result{}
}

// PrimaryPrice parses the first variant's price. ok is false when the
// product has no variants or the price does not parse as a number.
func PrimaryPrice(p *shopify.Product) (float64, *shopify.Variant, bool) {
	if len(p.Variants) == 0 {
		return 0, nil, false
	}
	v := &p.Variants[0]
	if v.Price == "" {
		return 0, nil, false
	}
	price, err := strconv.ParseFloat(v.Price, 64)
	if err != nil {
		return 0, nil, false
	}
	return price, v, true
}
