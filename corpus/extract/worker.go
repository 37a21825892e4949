package extract

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/cache"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/provider"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/tracker"
)

// Result is the terminal state of one chapter.
type Result struct {
	Chapter    corpus.ChapterSource
	OutputPath string // empty when nothing was written
	Outcome    corpus.Outcome
	Err        error
}

// Worker extracts one chapter at a time. It is safe for concurrent use; every
// shared dependency synchronizes itself.
type Worker struct {
	client    provider.Completer
	cache     *cache.Store
	tracker   *tracker.Tracker
	gate      *semaphore.Weighted
	flights   *singleflight.Group
	retry     provider.RetryPolicy
	filter    corpus.KeywordFilter
	prompt    string
	character string
	force     bool
	logger    *log.Logger
}

// UserMessage is the per-chapter message sent alongside the system prompt.
func UserMessage(character, fileName, text string) string {
	return fmt.Sprintf("Target character: %s\nSource file: %s\n\nText:\n%s", character, fileName, text)
}

// Process runs the chapter through filter, cache, and remote extraction, and
// writes its output document. It never returns an error or panics; failures
// come back as OutcomeFailed and are counted exactly once.
func (w *Worker) Process(ctx context.Context, ch corpus.ChapterSource, outPath string) (res Result) {
	res = Result{Chapter: ch}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Chapter: ch, Outcome: corpus.OutcomeFailed, Err: fmt.Errorf("panic: %v", r)}
		}
		if res.Outcome == corpus.OutcomeFailed {
			w.logger.Error("chapter failed", "file", ch.FileName, "volume", ch.Volume, "error", res.Err)
		}
		w.tracker.RecordOutcome(res.Outcome, filepath.Join(ch.Volume, ch.FileName))
	}()

	text, err := fileutils.ReadText(ch.Path)
	if err != nil {
		return failed(ch, fmt.Errorf("read chapter: %w", err))
	}

	if !w.filter.Match(text) {
		raw, err := corpus.MarshalDocument(corpus.EmptyDocument())
		if err != nil {
			return failed(ch, err)
		}
		if err := fileutils.WriteFileAtomicSameDir(outPath, raw, 0o644); err != nil {
			return failed(ch, fmt.Errorf("write placeholder: %w", err))
		}
		w.logger.Debug("skipped, character absent", "file", ch.FileName)
		return Result{Chapter: ch, OutputPath: outPath, Outcome: corpus.OutcomeSkipped}
	}

	key := cache.Fingerprint(text, w.prompt)
	if !w.force {
		if e, ok := w.cache.Get(key); ok {
			if err := fileutils.WriteFileAtomicSameDir(outPath, e.Raw, 0o644); err != nil {
				return failed(ch, fmt.Errorf("write cached output: %w", err))
			}
			w.logger.Debug("cache hit", "file", ch.FileName, "key", key)
			return Result{Chapter: ch, OutputPath: outPath, Outcome: classify(e.Doc)}
		}
	}

	var led bool
	v, err, _ := w.flights.Do(key, func() (any, error) {
		led = true
		return w.extract(ctx, ch, text, key, outPath)
	})
	if err != nil {
		return failed(ch, err)
	}
	out := v.(extraction)
	if !led || out.cached {
		if err := fileutils.WriteFileAtomicSameDir(outPath, out.raw, 0o644); err != nil {
			return failed(ch, fmt.Errorf("write cached output: %w", err))
		}
		w.logger.Debug("cache hit", "file", ch.FileName, "key", key)
	}
	return Result{Chapter: ch, OutputPath: outPath, Outcome: classify(out.doc)}
}

// extraction is the normalized document produced for one fingerprint.
type extraction struct {
	raw    []byte
	doc    corpus.Document
	cached bool
}

// extract produces the document for key, calling the model at most once per
// fingerprint among concurrent chapters. A fresh result is written to outPath
// before it is cached; chapters sharing the flight write their own copy and
// record no usage.
func (w *Worker) extract(ctx context.Context, ch corpus.ChapterSource, text, key, outPath string) (extraction, error) {
	if !w.force {
		if e, ok := w.cache.Get(key); ok {
			return extraction{raw: e.Raw, doc: e.Doc, cached: true}, nil
		}
	}

	content, err := w.complete(ctx, UserMessage(w.character, ch.FileName, text))
	if err != nil {
		return extraction{}, err
	}

	doc, err := corpus.ParseDocument(content)
	if err != nil {
		return extraction{}, fmt.Errorf("malformed response: %w", err)
	}
	raw, err := corpus.MarshalDocument(doc)
	if err != nil {
		return extraction{}, err
	}
	if err := fileutils.WriteFileAtomicSameDir(outPath, raw, 0o644); err != nil {
		return extraction{}, fmt.Errorf("write output: %w", err)
	}
	if err := w.cache.Put(key, raw); err != nil {
		w.logger.Warn("cache write failed", "file", ch.FileName, "error", err)
	}
	return extraction{raw: raw, doc: doc}, nil
}

// complete holds one gate slot for the whole retried call.
func (w *Worker) complete(ctx context.Context, user string) (string, error) {
	if err := w.gate.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for remote slot: %w", err)
	}
	defer w.gate.Release(1)

	c, err := provider.Call(ctx, w.retry, func(ctx context.Context) (provider.Completion, error) {
		c, err := w.client.Complete(ctx, w.prompt, user)
		if c.PromptTokens > 0 || c.CompletionTokens > 0 {
			w.tracker.RecordUsage(c.PromptTokens, c.CompletionTokens)
		}
		return c, err
	})
	if err != nil {
		return "", fmt.Errorf("remote call: %w", err)
	}
	return c.Content, nil
}

func classify(doc corpus.Document) corpus.Outcome {
	if doc.HasUnits() {
		return corpus.OutcomeSuccess
	}
	return corpus.OutcomeEmpty
}

func failed(ch corpus.ChapterSource, err error) Result {
	return Result{Chapter: ch, Outcome: corpus.OutcomeFailed, Err: err}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
