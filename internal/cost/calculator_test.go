package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		model      string
		input      int64
		output     int64
		cacheWrite int64
		cacheRead  int64
		want       float64
	}{
		{
			name:  "haiku simple",
			model: "haiku",
			input: 1_000_000, output: 100_000,
			want: 0.80 + 0.40, // 0.80 input + 0.40 output
		},
		{
			name:  "sonnet simple",
			model: "sonnet",
			input: 1_000_000, output: 100_000,
			want: 3.00 + 1.50,
		},
		{
			name:  "haiku with cache",
			model: "haiku",
			input: 500_000, output: 100_000,
			cacheWrite: 200_000, cacheRead: 300_000,
			// 0.40 input + 0.40 output + 0.20 cache write + 0.024 cache read
			want: 1.024,
		},
		{
			name:  "unknown model",
			model: "nope",
			input: 1_000_000, output: 1_000_000,
			want: 0,
		},
		{
			name:  "zero usage",
			model: "haiku",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Claude(tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()
	assert.NotEmpty(t, rates.Anthropic)
	haiku, ok := rates.Anthropic["claude-haiku-4-5-20251001"]
	assert.True(t, ok)
	assert.Equal(t, 0.80, haiku.Input)
	assert.Equal(t, 4.00, haiku.Output)
}

func TestTracker(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(NewCalculator(testRates()))

	tracker.AddClaude("haiku", 1_000_000, 100_000, 0, 0)
	tracker.AddClaude("haiku", 500_000, 100_000, 200_000, 300_000)

	s := tracker.Summary()
	assert.Equal(t, int64(2), s.Calls)
	assert.Equal(t, int64(1_500_000), s.InputTokens)
	assert.Equal(t, int64(200_000), s.OutputTokens)
	assert.Equal(t, int64(200_000), s.CacheWriteTokens)
	assert.Equal(t, int64(300_000), s.CacheReadTokens)
	assert.InDelta(t, 1.20+1.024, s.EstimatedUSD, 0.0001)
}

func TestTrackerConcurrent(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(NewCalculator(testRates()))

	done := make(chan struct{})
	for range 8 {
		go func() {
			for range 100 {
				tracker.AddClaude("haiku", 1000, 100, 0, 0)
			}
			done <- struct{}{}
		}()
	}
	for range 8 {
		<-done
	}

	s := tracker.Summary()
	assert.Equal(t, int64(800), s.Calls)
	assert.Equal(t, int64(800_000), s.InputTokens)
}

func TestLogSummary_DoesNotPanic(t *testing.T) {
	tracker := NewTracker(NewCalculator(testRates()))
	assert.NotPanics(t, func() { tracker.LogSummary() })

	tracker.AddClaude("haiku", 100, 10, 0, 0)
	assert.NotPanics(t, func() { tracker.LogSummary() })
}
