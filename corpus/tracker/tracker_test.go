package tracker

import (
	"math"
	"sync"
	"testing"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

func TestTracker_ConcurrentUpdatesAreNotLost(t *testing.T) {
	t.Parallel()

	tr := New()
	outcomes := []corpus.Outcome{corpus.OutcomeSuccess, corpus.OutcomeEmpty, corpus.OutcomeSkipped, corpus.OutcomeFailed}

	var wg sync.WaitGroup
	for i := 0; i < 400; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.RecordUsage(10, 5)
			tr.RecordOutcome(outcomes[i%4], "ch")
		}(i)
	}
	wg.Wait()

	s := tr.Snapshot()
	if s.PromptTokens != 4000 || s.CompletionTokens != 2000 {
		t.Fatalf("tokens=%d/%d", s.PromptTokens, s.CompletionTokens)
	}
	if s.Success != 100 || s.Empty != 100 || s.Skipped != 100 || s.Failed != 100 {
		t.Fatalf("stats=%+v", s)
	}
	if s.Done() != 400 || len(s.Failures) != 100 {
		t.Fatalf("done=%d failures=%d", s.Done(), len(s.Failures))
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.RecordUsage(2000, 1000)
	got := tr.EstimateCost(DefaultPricing)
	if math.Abs(got-0.004) > 1e-12 {
		t.Fatalf("cost=%v, want 0.004", got)
	}
}
