package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glowcart/optimizer-cli/internal/config"
	"github.com/glowcart/optimizer-cli/internal/cost"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/pkg/anthropic"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func testClaudeConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_1",
		Model:      "claude-haiku-4-5-20251001",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func testProduct() *shopify.Product {
	return &shopify.Product{
		ID:          882,
		Title:       "Red Shoes",
		BodyHTML:    "<p>Comfy shoes.</p>",
		ProductType: "Shoes",
		Tags:        "red, shoes",
		Variants:    []shopify.Variant{{ID: 1, Price: "19.00"}},
	}
}

func TestClaudeGenerate(t *testing.T) {
	mc := new(mockAnthropicClient)
	tracker := cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))
	provider := NewClaude(mc, testClaudeConfig(), DefaultLimits(), tracker)

	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.System) == 1 &&
			req.System[0].Text == titleSystemPrompt &&
			req.System[0].CacheControl != nil
	})).Return(textResponse(`{"suggestion": "Comfortable Red Shoes For Everyday Wear"}`), nil)

	got, err := provider.Generate(context.Background(), model.TypeTitle, testProduct())
	require.NoError(t, err)
	assert.Equal(t, "Comfortable Red Shoes For Everyday Wear", got)

	s := tracker.Summary()
	assert.Equal(t, int64(1), s.Calls)
	assert.Equal(t, int64(100), s.InputTokens)

	mc.AssertExpectations(t)
}

func TestClaudeGenerate_CodeFencedJSON(t *testing.T) {
	mc := new(mockAnthropicClient)
	provider := NewClaude(mc, testClaudeConfig(), DefaultLimits(), nil)

	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n{\"suggestion\": \"red, summer, running, comfort, mesh\"}\n```"), nil)

	got, err := provider.Generate(context.Background(), model.TypeKeywords, testProduct())
	require.NoError(t, err)
	assert.Equal(t, "red, summer, running, comfort, mesh", got)
}

func TestClaudeGenerate_InvalidJSON(t *testing.T) {
	mc := new(mockAnthropicClient)
	provider := NewClaude(mc, testClaudeConfig(), DefaultLimits(), nil)

	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("Here is a better title: Red Shoes Deluxe"), nil)

	_, err := provider.Generate(context.Background(), model.TypeTitle, testProduct())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestClaudeGenerate_EmptySuggestion(t *testing.T) {
	mc := new(mockAnthropicClient)
	provider := NewClaude(mc, testClaudeConfig(), DefaultLimits(), nil)

	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"suggestion": "  "}`), nil)

	_, err := provider.Generate(context.Background(), model.TypeTitle, testProduct())
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestClaudeGenerate_OverLengthCap(t *testing.T) {
	mc := new(mockAnthropicClient)
	limits := DefaultLimits()
	limits.Title = 10
	provider := NewClaude(mc, testClaudeConfig(), limits, nil)

	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"suggestion": "A Title Well Over Ten Characters"}`), nil)

	_, err := provider.Generate(context.Background(), model.TypeTitle, testProduct())
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestClaudeGenerate_PriceNormalized(t *testing.T) {
	mc := new(mockAnthropicClient)
	provider := NewClaude(mc, testClaudeConfig(), DefaultLimits(), nil)

	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"suggestion": "18.990"}`), nil)

	got, err := provider.Generate(context.Background(), model.TypePricing, testProduct())
	require.NoError(t, err)
	assert.Equal(t, "18.99", got)
}

func TestClaudeGenerate_PriceUnparseable(t *testing.T) {
	mc := new(mockAnthropicClient)
	provider := NewClaude(mc, testClaudeConfig(), DefaultLimits(), nil)

	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"suggestion": "about twenty bucks"}`), nil)

	_, err := provider.Generate(context.Background(), model.TypePricing, testProduct())
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestClassifyProviderErr(t *testing.T) {
	assert.True(t, errors.Is(classifyProviderErr(context.DeadlineExceeded), ErrTimeout))
	assert.True(t, errors.Is(classifyProviderErr(errors.New("429 Too Many Requests")), ErrQuotaExceeded))
	assert.True(t, errors.Is(classifyProviderErr(errors.New("api overloaded, retry later")), ErrQuotaExceeded))

	plain := classifyProviderErr(errors.New("connection refused"))
	assert.False(t, errors.Is(plain, ErrTimeout))
	assert.False(t, errors.Is(plain, ErrQuotaExceeded))
	assert.Error(t, plain)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(testProduct())
	assert.Contains(t, prompt, "Title: Red Shoes")
	assert.Contains(t, prompt, "Product type: Shoes")
	assert.Contains(t, prompt, "Price: 19.00")
	assert.Contains(t, prompt, "Comfy shoes.")
}
