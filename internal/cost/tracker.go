package cost

import (
	"sync"

	"go.uber.org/zap"
)

// Tracker accumulates API usage across one run. Safe for concurrent use
// by bulk workers.
type Tracker struct {
	mu   sync.Mutex
	calc *Calculator

	calls      int64
	input      int64
	output     int64
	cacheWrite int64
	cacheRead  int64
	usd        float64
}

// NewTracker creates a Tracker backed by the given calculator.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// AddClaude records one Claude API call.
func (t *Tracker) AddClaude(model string, input, output, cacheWrite, cacheRead int64) {
	cost := t.calc.Claude(model, input, output, cacheWrite, cacheRead)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.input += input
	t.output += output
	t.cacheWrite += cacheWrite
	t.cacheRead += cacheRead
	t.usd += cost
}

// Summary is a point-in-time snapshot of accumulated usage.
type Summary struct {
	Calls            int64
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	EstimatedUSD     float64
}

// Summary returns the accumulated totals.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		Calls:            t.calls,
		InputTokens:      t.input,
		OutputTokens:     t.output,
		CacheWriteTokens: t.cacheWrite,
		CacheReadTokens:  t.cacheRead,
		EstimatedUSD:     t.usd,
	}
}

// LogSummary emits the accumulated totals as one structured log line.
func (t *Tracker) LogSummary() {
	s := t.Summary()
	if s.Calls == 0 {
		return
	}
	zap.L().Info("suggestion usage summary",
		zap.Int64("calls", s.Calls),
		zap.Int64("input_tokens", s.InputTokens),
		zap.Int64("output_tokens", s.OutputTokens),
		zap.Int64("cache_write_tokens", s.CacheWriteTokens),
		zap.Int64("cache_read_tokens", s.CacheReadTokens),
		zap.Float64("estimated_cost_usd", s.EstimatedUSD),
	)
}
