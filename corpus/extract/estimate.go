package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/cache"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

// TokenCounter counts prompt tokens locally. *provider.TokenCounter satisfies it.
type TokenCounter interface {
	Count(text string) int
}

// Estimate is the dry-run forecast for a Filter.
type Estimate struct {
	Chapters     int     `json:"chapters"`
	Skipped      int     `json:"skipped"`
	Cached       int     `json:"cached"`
	Remote       int     `json:"remote"`
	Unreadable   int     `json:"unreadable"`
	PromptTokens int64   `json:"prompt_tokens"`
	Cost         float64 `json:"cost"`
}

// Estimate walks the same chapters as Run and predicts which would need a
// remote call and how many prompt tokens those calls would send. It makes no
// remote calls and writes nothing. Cost covers prompt tokens only.
func (s *Scheduler) Estimate(ctx context.Context, f Filter, counter TokenCounter) (Estimate, error) {
	if counter == nil {
		return Estimate{}, errors.New("Estimate: counter is nil")
	}
	tasks, err := s.discover(f)
	if err != nil {
		return Estimate{}, err
	}

	est := Estimate{Chapters: len(tasks)}
	promptTokens := int64(counter.Count(s.prompt))
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return est, err
		}
		text, err := fileutils.ReadText(t.chapter.Path)
		if err != nil {
			s.logger.Warn("unreadable chapter", "file", t.chapter.FileName, "error", err)
			est.Unreadable++
			continue
		}
		if !s.cfg.Filter.Match(text) {
			est.Skipped++
			continue
		}
		if !s.cfg.ForceRefresh {
			if _, ok := s.cache.Get(cache.Fingerprint(text, s.prompt)); ok {
				est.Cached++
				continue
			}
		}
		est.Remote++
		est.PromptTokens += promptTokens + int64(counter.Count(UserMessage(s.cfg.Character, t.chapter.FileName, text)))
	}
	est.Cost = s.cfg.Pricing.Cost(est.PromptTokens, 0)
	s.logger.Info("dry run",
		"chapters", est.Chapters,
		"skipped", est.Skipped,
		"cached", est.Cached,
		"remote", est.Remote,
		"prompt_tokens", est.PromptTokens,
		"cost", fmt.Sprintf("%.2f", est.Cost),
	)
	return est, nil
}
