package suggest

import (
	"fmt"
	"math"
	"strings"

	"github.com/glowcart/optimizer-cli/internal/classifier"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// Fallback returns the deterministic suggestion for a type. It never
// fails; merchants get a usable value even with the provider down.
func Fallback(typ model.OptimizationType, p *shopify.Product) string {
	switch typ {
	case model.TypeTitle:
		return fallbackTitle(p)
	case model.TypeDescription:
		return fallbackDescription(p)
	case model.TypePricing:
		return fallbackPrice(p)
	case model.TypeKeywords:
		return fallbackKeywords(p)
	default:
		return ""
	}
}

func fallbackTitle(p *shopify.Product) string {
	productType := p.ProductType
	if productType == "" {
		productType = "Quality Product"
	}
	return "Premium " + p.Title + " | " + productType
}

func fallbackDescription(p *shopify.Product) string {
	return "Experience the exceptional quality of our " + p.Title +
		". Premium materials and expert craftsmanship ensure lasting satisfaction."
}

// fallbackPrice applies charm pricing: whole dollars above 10 drop to
// x.99 of the dollar below, everything else takes a 5% cut.
func fallbackPrice(p *shopify.Product) string {
	price, _, ok := classifier.PrimaryPrice(p)
	if !ok {
		return ""
	}

	var optimized float64
	if price > 10 {
		optimized = math.Floor(price) - 0.01
	} else {
		optimized = price * 0.95
	}
	optimized = math.Round(optimized*100) / 100

	return fmt.Sprintf("%.2f", optimized)
}

func fallbackKeywords(p *shopify.Product) string {
	var keywords []string

	// Up to three meaningful title words, skipping short filler.
	for _, word := range strings.Fields(p.Title) {
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
		if len(keywords) == 3 {
			break
		}
	}

	keywords = append(keywords, p.ProductType, "premium", "quality", "bestseller")

	filtered := keywords[:0]
	for _, k := range keywords {
		if k != "" {
			filtered = append(filtered, k)
		}
	}

	return strings.Join(filtered, ", ")
}
