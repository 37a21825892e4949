package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/extract"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/prompt"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/provider"
)

func newExtractCmd(run func(*cobra.Command, extractConfig) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a character's interaction units from split chapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return usageError(err)
			}
			cfg := readExtractConfig(v, "input")
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}
			return run(cmd, cfg)
		},
	}
	addExtractFlags(cmd.Flags(), defaultExtractConfig(), "input")
	return cmd
}

// addExtractFlags registers the extraction flags. inputFlag names the flag
// for the split chapter tree, which the pipeline shares with its split stage.
func addExtractFlags(fs *pflag.FlagSet, def extractConfig, inputFlag string) {
	fs.String(inputFlag, def.InputRoot, "Root of the split chapter tree (NN_<volume>/NNN_<title>.txt)")
	fs.String("dataset-dir", def.DatasetDir, "Directory that receives cleaned_<character>_<prefix>_<timestamp> run outputs")
	fs.String("output-root", "", "Exact output directory for this run (overrides --dataset-dir naming)")
	fs.String("cache-dir", def.CacheDir, "Response cache directory")

	fs.String("character", "", "Target character name")
	fs.String("novel", "", "Source novel name (fills {source_novel} and selects nicknames)")
	fs.Bool("short-name", def.ShortName, "Also match the character name without its first character")
	fs.StringSlice("nickname", nil, "Extra keyword that marks a chapter as relevant (repeatable)")
	fs.String("nicknames-file", def.NicknamesFile, "JSON nickname book: {novel: {character: [nicknames]}}")

	fs.String("prefix", "", "Only process volumes whose directory starts with this prefix")
	fs.Int("start", def.Start, "First chapter number to process (-1 = no bound)")
	fs.Int("end", def.End, "Last chapter number to process (-1 = no bound)")

	fs.String("instruction", def.InstructionFile, "Prompt instruction template")
	fs.String("schema", def.SchemaFile, "Output schema description included in the prompt")

	fs.String("base-url", "", "OpenAI-compatible base URL (default: $DEEPSEEK_BASE_URL, $OPENAI_BASE_URL, or "+provider.DefaultBaseURL+")")
	fs.String("model", def.Model, "Chat model")
	fs.Float64("temperature", def.Temperature, "Sampling temperature")
	fs.Duration("timeout", def.Timeout, "Per-request timeout")

	fs.Int("max-in-flight", def.MaxInFlight, "Max concurrent remote calls")
	fs.Int("workers", def.Workers, "Max chapters processed concurrently")
	fs.Uint("attempts", def.Attempts, "Attempts per remote call, including the first")

	fs.Float64("price-prompt", def.PricePrompt, "Price per 1000 prompt tokens")
	fs.Float64("price-completion", def.PriceCompletion, "Price per 1000 completion tokens")

	fs.Bool("force-refresh", def.ForceRefresh, "Clear the response cache and call the model for every chapter")
	fs.Bool("dry-run", def.DryRun, "Estimate remote calls and prompt tokens without calling the model or writing outputs")
}

func readExtractConfig(v *viper.Viper, inputKey string) extractConfig {
	baseURL := v.GetString("base-url")
	if baseURL == "" {
		baseURL = baseURLFromEnv()
	}
	if baseURL == "" {
		baseURL = provider.DefaultBaseURL
	}
	return extractConfig{
		commonConfig:    common(v),
		InputRoot:       cleanPath(v.GetString(inputKey)),
		DatasetDir:      cleanPath(v.GetString("dataset-dir")),
		OutputRoot:      cleanPath(v.GetString("output-root")),
		CacheDir:        cleanPath(v.GetString("cache-dir")),
		Character:       v.GetString("character"),
		SourceNovel:     v.GetString("novel"),
		ShortName:       v.GetBool("short-name"),
		Nicknames:       v.GetStringSlice("nickname"),
		NicknamesFile:   cleanPath(v.GetString("nicknames-file")),
		VolumePrefix:    v.GetString("prefix"),
		Start:           v.GetInt("start"),
		End:             v.GetInt("end"),
		InstructionFile: cleanPath(v.GetString("instruction")),
		SchemaFile:      cleanPath(v.GetString("schema")),
		APIKey:          apiKeyFromEnv(),
		BaseURL:         baseURL,
		Model:           v.GetString("model"),
		Temperature:     v.GetFloat64("temperature"),
		Timeout:         v.GetDuration("timeout"),
		MaxInFlight:     v.GetInt("max-in-flight"),
		Workers:         v.GetInt("workers"),
		Attempts:        v.GetUint("attempts"),
		PricePrompt:     v.GetFloat64("price-prompt"),
		PriceCompletion: v.GetFloat64("price-completion"),
		ForceRefresh:    v.GetBool("force-refresh"),
		DryRun:          v.GetBool("dry-run"),
	}
}

func runExtract(cmd *cobra.Command, cfg extractConfig) error {
	if cfg.DryRun {
		return runEstimate(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	_, _, err := extractStage(cmd.Context(), cfg, cmd.ErrOrStderr(), time.Now())
	return err
}

// extractStage runs one extraction and returns its output root and the
// written chapter files. A range with no chapters is not an error.
func extractStage(ctx context.Context, cfg extractConfig, stderr io.Writer, at time.Time) (string, []string, error) {
	outRoot := cfg.outputRoot(at)
	runID := extract.NewRunID()

	logger, closeLog, err := openRunLog(outRoot, stderr, cfg.LogLevel)
	if err != nil {
		return "", nil, fmt.Errorf("open run log: %w", err)
	}
	defer func() { _ = closeLog() }()
	logger = logger.With("run", runID)

	keywords := characterFilter(cfg, logger)
	system := composePrompt(cfg)
	copyPromptFiles(cfg, outRoot, logger)

	client, err := provider.NewChatClient(provider.ChatConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return "", nil, usageError(err)
	}

	retry := provider.DefaultRetryPolicy()
	retry.Attempts = cfg.Attempts
	retry.OnRetry = func(n uint, err error) {
		logger.Warn("retrying remote call", "attempt", n+1, "error", err)
	}

	s, err := extract.NewScheduler(extract.Config{
		InputRoot:    cfg.InputRoot,
		OutputRoot:   outRoot,
		CacheDir:     cfg.CacheDir,
		Character:    cfg.Character,
		SourceNovel:  cfg.SourceNovel,
		Filter:       keywords,
		SystemPrompt: system,
		ForceRefresh: cfg.ForceRefresh,
		MaxInFlight:  cfg.MaxInFlight,
		Workers:      cfg.Workers,
		Pricing:      cfg.pricing(),
		Retry:        retry,
	}, client, extract.WithLogger(logger))
	if err != nil {
		return "", nil, usageError(err)
	}

	f := cfg.filter()
	logger.Info("configuration",
		"character", cfg.Character,
		"novel", cfg.SourceNovel,
		"prefix", cfg.VolumePrefix,
		"range", f.Range.String(),
		"keywords", keywords.Keywords(),
		"model", client.Model(),
		"force_refresh", cfg.ForceRefresh,
	)

	started := time.Now()
	paths, runErr := s.Run(ctx, f)
	if _, err := extract.WriteManifest(outRoot, s.Manifest(runID, f, started, time.Now(), len(paths), runErr)); err != nil {
		logger.Warn("manifest not written", "error", err)
	}
	if errors.Is(runErr, extract.ErrNoChapters) {
		runErr = nil
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	return outRoot, paths, runErr
}

// runEstimate reports what a run would cost without calling the model.
func runEstimate(ctx context.Context, cfg extractConfig, stdout, stderr io.Writer) error {
	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	counter, err := provider.NewTokenCounter(cfg.Model)
	if err != nil {
		return fmt.Errorf("token counter: %w", err)
	}
	s, err := estimateScheduler(cfg, logger)
	if err != nil {
		return err
	}
	est, err := s.Estimate(ctx, cfg.filter(), counter)
	if errors.Is(err, extract.ErrNoChapters) {
		logger.Warn("nothing to process", "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	b, err := fileutils.MarshalJSON(est, true)
	if err != nil {
		return err
	}
	_, err = stdout.Write(b)
	return err
}

// estimateScheduler builds a scheduler that can plan a run but never call the model.
func estimateScheduler(cfg extractConfig, logger *log.Logger) (*extract.Scheduler, error) {
	s, err := extract.NewScheduler(extract.Config{
		InputRoot:    cfg.InputRoot,
		OutputRoot:   cfg.outputRoot(time.Now()),
		CacheDir:     cfg.CacheDir,
		Character:    cfg.Character,
		SourceNovel:  cfg.SourceNovel,
		Filter:       characterFilter(cfg, logger),
		SystemPrompt: composePrompt(cfg),
		ForceRefresh: cfg.ForceRefresh,
		Pricing:      cfg.pricing(),
	}, offlineCompleter{}, extract.WithLogger(logger))
	if err != nil {
		return nil, usageError(err)
	}
	return s, nil
}

// offlineCompleter stands in for the remote client when no call may be made.
type offlineCompleter struct{}

func (offlineCompleter) Complete(context.Context, string, string) (provider.Completion, error) {
	return provider.Completion{}, errors.New("remote calls are disabled in dry-run mode")
}

// characterFilter combines the configured nicknames with the nickname book.
func characterFilter(cfg extractConfig, logger *log.Logger) corpus.KeywordFilter {
	book, err := corpus.LoadNicknames(cfg.NicknamesFile)
	if err != nil {
		logger.Warn("nickname book not loaded", "path", cfg.NicknamesFile, "error", err)
	}
	nicks := corpus.MergeNicknames(cfg.Nicknames, book.Lookup(cfg.SourceNovel, cfg.Character), cfg.Character)
	if len(nicks) > 0 {
		logger.Info("nicknames loaded", "character", cfg.Character, "nicknames", nicks)
	}
	return corpus.CharacterFilter(cfg.Character, cfg.ShortName, nicks)
}

// composePrompt builds the system prompt, using the reflected document schema
// when no schema file is available.
func composePrompt(cfg extractConfig) string {
	schema, err := provider.SchemaJSON[corpus.Document]()
	if err != nil {
		schema = ""
	}
	return prompt.LoadComposedWithDefault(cfg.InstructionFile, cfg.SchemaFile, schema)
}

// copyPromptFiles keeps the prompt templates next to the run's outputs.
func copyPromptFiles(cfg extractConfig, outRoot string, logger *log.Logger) {
	dir := filepath.Join(outRoot, corpus.PromptDirName)
	for _, src := range []string{cfg.InstructionFile, cfg.SchemaFile} {
		if src == "" {
			continue
		}
		if _, err := fileutils.CopyFileIfExists(src, filepath.Join(dir, filepath.Base(src)), true); err != nil {
			logger.Warn("prompt file not copied", "file", src, "error", err)
		}
	}
}
