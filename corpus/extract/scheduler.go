// Package extract fans chapter files out to the remote model and reassembles
// the results into an ordered corpus.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/cache"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/prompt"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/provider"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/tracker"
)

var (
	ErrNoVolumes  = errors.New("no matching volume directories")
	ErrNoChapters = errors.New("no chapters in range")
)

const (
	DefaultMaxInFlight   = 10
	DefaultWorkers       = 64
	DefaultProgressEvery = 10
)

// Config is everything a run needs besides the remote client.
type Config struct {
	InputRoot  string
	OutputRoot string
	CacheDir   string

	Character   string
	SourceNovel string
	Filter      corpus.KeywordFilter

	// SystemPrompt is the composed prompt; placeholders are rendered per run.
	SystemPrompt string

	ForceRefresh bool

	// MaxInFlight bounds concurrent remote calls.
	MaxInFlight int
	// Workers bounds concurrently processed chapters, remote or not.
	Workers int

	ProgressEvery int
	Pricing       tracker.Pricing
	Retry         provider.RetryPolicy
}

func (c Config) Validate() error {
	if c.InputRoot == "" {
		return errors.New("extract: InputRoot is empty")
	}
	if c.OutputRoot == "" {
		return errors.New("extract: OutputRoot is empty")
	}
	if c.CacheDir == "" {
		return errors.New("extract: CacheDir is empty")
	}
	if c.Character == "" {
		return errors.New("extract: Character is empty")
	}
	if c.MaxInFlight < 0 || c.Workers < 0 {
		return errors.New("extract: concurrency limits must be >= 0")
	}
	return nil
}

// Filter selects which chapters a run covers.
type Filter struct {
	// VolumePrefix keeps volumes whose directory name starts with it. Empty means all.
	VolumePrefix string
	Range        corpus.ChapterRange
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger routes diagnostics to l.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracker shares an existing tracker, e.g. across pipeline stages.
func WithTracker(t *tracker.Tracker) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracker = t
		}
	}
}

// Scheduler runs the extraction for one character over an input tree.
type Scheduler struct {
	cfg       Config
	client    provider.Completer
	cache     *cache.Store
	tracker   *tracker.Tracker
	logger    *log.Logger
	prompt    string
	clearOnce sync.Once
}

func NewScheduler(cfg Config, client provider.Completer, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("extract: client is nil")
	}
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if def := provider.DefaultRetryPolicy(); cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = def.Attempts
		if cfg.Retry.Delay == 0 && cfg.Retry.MaxDelay == 0 {
			cfg.Retry.Delay, cfg.Retry.MaxDelay = def.Delay, def.MaxDelay
		}
	}
	if len(cfg.Filter.Keywords()) == 0 {
		cfg.Filter = corpus.CharacterFilter(cfg.Character, true, nil)
	}

	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:     cfg,
		client:  client,
		cache:   store,
		tracker: tracker.New(),
		logger:  discardLogger(),
		prompt:  prompt.Render(cfg.SystemPrompt, prompt.Vars{CharacterName: cfg.Character, SourceNovel: cfg.SourceNovel}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EffectivePrompt is the system prompt as sent and fingerprinted.
func (s *Scheduler) EffectivePrompt() string { return s.prompt }

func (s *Scheduler) Stats() tracker.RunStats { return s.tracker.Snapshot() }

func (s *Scheduler) Cost() float64 { return s.tracker.EstimateCost(s.cfg.Pricing) }

type task struct {
	chapter corpus.ChapterSource
	outPath string
}

// discover lists the chapters selected by f. Volume output directories are not
// created here.
func (s *Scheduler) discover(f Filter) ([]task, error) {
	vols, err := corpus.DiscoverVolumes(s.cfg.InputRoot, f.VolumePrefix)
	if err != nil {
		return nil, err
	}
	if len(vols) == 0 {
		return nil, fmt.Errorf("%w: prefix=%q under %s", ErrNoVolumes, f.VolumePrefix, s.cfg.InputRoot)
	}
	var tasks []task
	for _, vol := range vols {
		chapters, err := corpus.DiscoverChapters(s.cfg.InputRoot, vol, f.Range)
		if err != nil {
			return nil, err
		}
		for _, ch := range chapters {
			tasks = append(tasks, task{chapter: ch, outPath: filepath.Join(s.cfg.OutputRoot, vol, ch.FileName)})
		}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChapters, f.Range)
	}
	return tasks, nil
}

func (s *Scheduler) newWorker() *Worker {
	return &Worker{
		client:    s.client,
		cache:     s.cache,
		tracker:   s.tracker,
		gate:      semaphore.NewWeighted(int64(s.cfg.MaxInFlight)),
		flights:   new(singleflight.Group),
		retry:     s.cfg.Retry,
		filter:    s.cfg.Filter,
		prompt:    s.prompt,
		character: s.cfg.Character,
		force:     s.cfg.ForceRefresh,
		logger:    s.logger,
	}
}

// Run extracts every selected chapter and returns the written output paths in
// filename order, after unit ids have been stamped. Chapters that failed are
// not in the list. Discovery misses return ErrNoVolumes or ErrNoChapters with
// an empty list; per-chapter failures never produce an error.
func (s *Scheduler) Run(ctx context.Context, f Filter) ([]string, error) {
	tasks, err := s.discover(f)
	if err != nil {
		if errors.Is(err, ErrNoChapters) {
			s.logger.Warn("nothing to process", "error", err)
		} else {
			s.logger.Error("discovery failed", "error", err)
		}
		return []string{}, err
	}

	if s.cfg.ForceRefresh {
		s.clearOnce.Do(func() {
			n, err := s.cache.Clear()
			if err != nil {
				s.logger.Warn("cache clear failed", "error", err)
				return
			}
			s.logger.Info("cache cleared", "entries", n)
		})
	}

	for _, t := range tasks {
		if err := os.MkdirAll(filepath.Dir(t.outPath), 0o755); err != nil {
			return []string{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	s.logger.Info("extraction started",
		"prefix", prefixLabel(f.VolumePrefix),
		"range", f.Range.String(),
		"chapters", len(tasks),
		"max_in_flight", s.cfg.MaxInFlight,
	)

	w := s.newWorker()
	results := make(chan Result, len(tasks))
	go func() {
		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for _, t := range tasks {
			g.Go(func() error {
				results <- w.Process(ctx, t.chapter, t.outPath)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	paths := make([]string, 0, len(tasks))
	done := 0
	for r := range results {
		done++
		if r.OutputPath != "" {
			paths = append(paths, r.OutputPath)
		}
		if done%s.cfg.ProgressEvery == 0 || done == len(tasks) {
			s.logProgress(done, len(tasks))
		}
	}

	stamped, err := corpus.StampSequence(paths)
	if err != nil {
		s.logger.Error("sequence stamping failed", "error", err)
	}

	stats := s.Stats()
	s.logger.Info("extraction finished",
		"units", stamped,
		"success", stats.Success,
		"empty", stats.Empty,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"cost", fmt.Sprintf("%.2f", s.Cost()),
		"output", s.cfg.OutputRoot,
	)
	for _, name := range stats.Failures {
		s.logger.Warn("needs follow-up", "file", name)
	}
	return corpus.SortOutputPaths(paths), nil
}

func (s *Scheduler) logProgress(done, total int) {
	st := s.Stats()
	s.logger.Info("progress",
		"done", fmt.Sprintf("%d/%d", done, total),
		"success", st.Success,
		"empty", st.Empty,
		"failed", st.Failed,
		"skipped", st.Skipped,
		"cost", fmt.Sprintf("%.2f", s.Cost()),
	)
}

func prefixLabel(prefix string) string {
	if prefix == "" {
		return "full"
	}
	return prefix
}
