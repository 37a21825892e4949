// Package tracker accumulates token usage and per-chapter outcomes for a run.
package tracker

import (
	"sync"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

// Pricing is the price per 1000 tokens.
type Pricing struct {
	PromptPer1K     float64 `json:"prompt_per_1k"`
	CompletionPer1K float64 `json:"completion_per_1k"`
}

// DefaultPricing matches deepseek-chat list prices in CNY.
var DefaultPricing = Pricing{PromptPer1K: 0.001, CompletionPer1K: 0.002}

// Cost returns the price of the given token counts.
func (p Pricing) Cost(promptTokens, completionTokens int64) float64 {
	return float64(promptTokens)/1000*p.PromptPer1K + float64(completionTokens)/1000*p.CompletionPer1K
}

// RunStats is a point-in-time copy of the tracker.
type RunStats struct {
	PromptTokens     int64    `json:"prompt_tokens"`
	CompletionTokens int64    `json:"completion_tokens"`
	Success          int      `json:"success"`
	Empty            int      `json:"empty"`
	Skipped          int      `json:"skipped"`
	Failed           int      `json:"failed"`
	Failures         []string `json:"failures,omitempty"`
}

// Done is the number of chapters that reached an outcome.
func (s RunStats) Done() int {
	return s.Success + s.Empty + s.Skipped + s.Failed
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	stats RunStats
}

func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) RecordUsage(promptTokens, completionTokens int64) {
	t.mu.Lock()
	t.stats.PromptTokens += promptTokens
	t.stats.CompletionTokens += completionTokens
	t.mu.Unlock()
}

// RecordOutcome counts one chapter outcome. name is kept for failed chapters so
// they can be listed for follow-up.
func (t *Tracker) RecordOutcome(o corpus.Outcome, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o {
	case corpus.OutcomeSuccess:
		t.stats.Success++
	case corpus.OutcomeEmpty:
		t.stats.Empty++
	case corpus.OutcomeSkipped:
		t.stats.Skipped++
	case corpus.OutcomeFailed:
		t.stats.Failed++
		if name != "" {
			t.stats.Failures = append(t.stats.Failures, name)
		}
	}
}

func (t *Tracker) Snapshot() RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.Failures = append([]string(nil), t.stats.Failures...)
	return s
}

// EstimateCost prices the usage recorded so far.
func (t *Tracker) EstimateCost(p Pricing) float64 {
	t.mu.Lock()
	pt, ct := t.stats.PromptTokens, t.stats.CompletionTokens
	t.mu.Unlock()
	return p.Cost(pt, ct)
}
