package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/glowcart/optimizer-cli/internal/classifier"
	"github.com/glowcart/optimizer-cli/internal/config"
	"github.com/glowcart/optimizer-cli/internal/cost"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/anthropic"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

const titleSystemPrompt = `You rewrite e-commerce product titles. Produce a title between 30 and 70 characters that names the product type, reads naturally, and is not all uppercase. Respond with a valid JSON object: {"suggestion": "<new title>"}`

const descriptionSystemPrompt = `You rewrite e-commerce product descriptions. Produce plain-HTML copy of at least 100 characters that mentions the product's benefits and features. Respond with a valid JSON object: {"suggestion": "<new description>"}`

const pricingSystemPrompt = `You suggest charm prices for e-commerce products. Given the current price, propose a price ending in .99 or .95 within 10% of the current value, as a plain decimal string. Respond with a valid JSON object: {"suggestion": "<price>"}`

const keywordsSystemPrompt = `You write e-commerce product tags. Produce 5-10 short lowercase keywords relevant to the product, comma separated in one string. Respond with a valid JSON object: {"suggestion": "<tag, tag, tag>"}`

const productPromptTemplate = `Title: %s
Product type: %s
Vendor: %s
Tags: %s
Price: %s

Description (first 2000 chars):
%s`

// Claude generates suggestions through the Anthropic API. All failure
// modes map onto the package's sentinel errors so the orchestrator can
// fall back without inspecting provider internals.
type Claude struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
	limits      Limits
	tracker     *cost.Tracker
}

// NewClaude builds the provider. tracker may be nil when the caller does
// not want usage accounting.
func NewClaude(client anthropic.Client, cfg config.AnthropicConfig, limits Limits, tracker *cost.Tracker) *Claude {
	c := &Claude{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limits:    limits,
		tracker:   tracker,
	}
	if cfg.Temperature > 0 {
		temp := cfg.Temperature
		c.temperature = &temp
	}
	return c
}

func (c *Claude) Generate(ctx context.Context, typ model.OptimizationType, product *shopify.Product) (string, error) {
	req := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPromptFor(typ)),
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(product)}},
		Temperature: c.temperature,
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		return "", classifyProviderErr(err)
	}

	if c.tracker != nil {
		c.tracker.AddClaude(c.model,
			resp.Usage.InputTokens,
			resp.Usage.OutputTokens,
			resp.Usage.CacheCreationInputTokens,
			resp.Usage.CacheReadInputTokens,
		)
	}
	resp.Usage.LogCost(c.model, "suggest_"+string(typ))

	suggestion, err := parseSuggestion(extractText(resp))
	if err != nil {
		return "", err
	}
	return c.validate(typ, suggestion)
}

func systemPromptFor(typ model.OptimizationType) string {
	switch typ {
	case model.TypeTitle:
		return titleSystemPrompt
	case model.TypeDescription:
		return descriptionSystemPrompt
	case model.TypePricing:
		return pricingSystemPrompt
	default:
		return keywordsSystemPrompt
	}
}

func buildPrompt(p *shopify.Product) string {
	price := "n/a"
	if _, variant, ok := classifier.PrimaryPrice(p); ok {
		price = variant.Price
	}

	description := classifier.PlainText(p.BodyHTML)
	if len(description) > 2000 {
		description = description[:2000]
	}

	return fmt.Sprintf(productPromptTemplate, p.Title, p.ProductType, p.Vendor, p.Tags, price, description)
}

// classifyProviderErr folds transport errors into the provider error
// taxonomy. Anything unrecognized stays wrapped for the logs.
func classifyProviderErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"429", "rate limit", "rate_limit", "overloaded", "quota"} {
		if strings.Contains(msg, pattern) {
			return ErrQuotaExceeded
		}
	}
	return eris.Wrap(err, "suggest: generate")
}

// validate enforces the shape contract on generated output. Pricing
// additionally has to parse as a positive decimal, which is then
// normalized to two places.
func (c *Claude) validate(typ model.OptimizationType, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidOutput
	}
	if limit := c.limits.For(typ); limit > 0 && len(s) > limit {
		return "", eris.Wrapf(ErrInvalidOutput, "length %d over cap %d", len(s), limit)
	}

	if typ == model.TypePricing {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil || price <= 0 {
			return "", eris.Wrapf(ErrInvalidOutput, "price %q does not parse", s)
		}
		s = fmt.Sprintf("%.2f", price)
	}

	return s, nil
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func parseSuggestion(text string) (string, error) {
	text = cleanJSON(text)

	var result struct {
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return "", eris.Wrap(ErrInvalidOutput, "response is not a suggestion object")
	}
	return result.Suggestion, nil
}
