package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/extract"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/provider"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/tracker"
)

// unbounded is the flag value for an open chapter range end.
const unbounded = -1

var stageNames = []string{"split", "extract", "validate", "export"}

// commonConfig holds settings shared by every subcommand.
type commonConfig struct {
	LogLevel string
}

type splitConfig struct {
	commonConfig

	Input     string
	OutputDir string
	Overwrite bool
}

func (c splitConfig) Validate() error {
	if c.Input == "" {
		return errors.New("missing --input")
	}
	if c.OutputDir == "" {
		return errors.New("missing --out")
	}
	return nil
}

func defaultSplitConfig() splitConfig {
	return splitConfig{
		Input:     filepath.FromSlash("novel_data/original_data/novel.txt"),
		OutputDir: filepath.FromSlash("novel_data/split_data"),
	}
}

type extractConfig struct {
	commonConfig

	InputRoot  string
	DatasetDir string
	// OutputRoot overrides the generated cleaned_<character>_<prefix>_<ts> directory.
	OutputRoot string
	CacheDir   string

	Character     string
	SourceNovel   string
	ShortName     bool
	Nicknames     []string
	NicknamesFile string

	VolumePrefix string
	Start        int
	End          int

	InstructionFile string
	SchemaFile      string

	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration

	MaxInFlight int
	Workers     int
	Attempts    uint

	PricePrompt     float64
	PriceCompletion float64

	ForceRefresh bool
	DryRun       bool
}

func (c extractConfig) Validate() error {
	if c.InputRoot == "" {
		return errors.New("missing --input")
	}
	if c.DatasetDir == "" && c.OutputRoot == "" {
		return errors.New("missing --dataset-dir or --output-root")
	}
	if c.CacheDir == "" {
		return errors.New("missing --cache-dir")
	}
	if strings.TrimSpace(c.Character) == "" {
		return errors.New("missing --character")
	}
	if c.Start < unbounded || c.End < unbounded {
		return errors.New("start/end must be >= 0 (or -1 for no bound)")
	}
	if c.Start != unbounded && c.End != unbounded && c.Start > c.End {
		return fmt.Errorf("start %d is after end %d", c.Start, c.End)
	}
	if c.MaxInFlight < 0 || c.Workers < 0 {
		return errors.New("max-in-flight/workers must be >= 0")
	}
	if c.Attempts == 0 {
		return errors.New("attempts must be >= 1")
	}
	if c.Temperature < 0 || c.Timeout < 0 {
		return errors.New("temperature/timeout must be >= 0")
	}
	if c.PricePrompt < 0 || c.PriceCompletion < 0 {
		return errors.New("prices must be >= 0")
	}
	if !c.DryRun && c.APIKey == "" {
		return errors.New("missing API key: set DEEPSEEK_API_KEY or OPENAI_API_KEY")
	}
	return nil
}

func defaultExtractConfig() extractConfig {
	return extractConfig{
		InputRoot:       filepath.FromSlash("novel_data/split_data"),
		DatasetDir:      filepath.FromSlash("novel_data/lora_dataset"),
		CacheDir:        filepath.FromSlash("novel_data/.cache"),
		ShortName:       true,
		NicknamesFile:   filepath.FromSlash("prompts/nicknames.json"),
		Start:           unbounded,
		End:             unbounded,
		InstructionFile: filepath.FromSlash("prompts/prompt_instruction.txt"),
		SchemaFile:      filepath.FromSlash("prompts/output_schema.txt"),
		BaseURL:         provider.DefaultBaseURL,
		Model:           provider.DefaultModel,
		Temperature:     provider.DefaultTemperature,
		Timeout:         5 * time.Minute,
		MaxInFlight:     extract.DefaultMaxInFlight,
		Workers:         extract.DefaultWorkers,
		Attempts:        provider.DefaultRetryPolicy().Attempts,
		PricePrompt:     tracker.DefaultPricing.PromptPer1K,
		PriceCompletion: tracker.DefaultPricing.CompletionPer1K,
	}
}

func (c extractConfig) chapterRange() corpus.ChapterRange {
	var r corpus.ChapterRange
	if c.Start != unbounded {
		start := c.Start
		r.Start = &start
	}
	if c.End != unbounded {
		end := c.End
		r.End = &end
	}
	return r
}

func (c extractConfig) filter() extract.Filter {
	return extract.Filter{VolumePrefix: c.VolumePrefix, Range: c.chapterRange()}
}

func (c extractConfig) pricing() tracker.Pricing {
	return tracker.Pricing{PromptPer1K: c.PricePrompt, CompletionPer1K: c.PriceCompletion}
}

// outputRoot resolves where this run writes, naming a fresh directory under
// DatasetDir unless OutputRoot is set.
func (c extractConfig) outputRoot(at time.Time) string {
	if c.OutputRoot != "" {
		return filepath.Clean(c.OutputRoot)
	}
	return filepath.Join(c.DatasetDir, corpus.OutputDirName(c.Character, c.VolumePrefix, at))
}

type validateConfig struct {
	commonConfig

	Path       string
	SchemaFile string
}

func (c validateConfig) Validate() error {
	if c.Path == "" {
		return errors.New("missing --path")
	}
	return nil
}

func defaultValidateConfig() validateConfig {
	return validateConfig{
		Path: filepath.FromSlash("novel_data/lora_dataset"),
	}
}

type exportConfig struct {
	commonConfig

	Input     string
	OutputDir string
	Character string
	Overwrite bool
}

func (c exportConfig) Validate() error {
	if c.Input == "" {
		return errors.New("missing --input")
	}
	if c.OutputDir == "" {
		return errors.New("missing --out")
	}
	return nil
}

func defaultExportConfig() exportConfig {
	return exportConfig{
		OutputDir: filepath.FromSlash("novel_data/lora_train_dataset"),
	}
}

type pipelineConfig struct {
	commonConfig

	Split   splitConfig
	Extract extractConfig
	Export  exportConfig

	// SchemaFile picks the validator; empty uses the built-in document schema.
	SchemaFile string

	FromStage string
	OnlyStage string
}

func (c pipelineConfig) Validate() error {
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of --only-stage or --from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !knownStage(s) {
			return fmt.Errorf("unknown stage %q (want %s)", s, strings.Join(stageNames, "|"))
		}
	}
	stages := c.stages()
	if slices.Contains(stages, "extract") {
		if err := c.Extract.Validate(); err != nil {
			return err
		}
	} else if needsCharacter(stages) && strings.TrimSpace(c.Extract.Character) == "" {
		return errors.New("missing --character")
	}
	if slices.Contains(stages, "export") && c.Export.OutputDir == "" {
		return errors.New("missing --export-dir")
	}
	return nil
}

func defaultPipelineConfig() pipelineConfig {
	return pipelineConfig{
		Split:   defaultSplitConfig(),
		Extract: defaultExtractConfig(),
		Export:  defaultExportConfig(),
	}
}

func (c pipelineConfig) stages() []string {
	if c.OnlyStage != "" {
		return []string{normalizeStage(c.OnlyStage)}
	}
	if c.FromStage != "" {
		return stagesFrom(stageNames, c.FromStage)
	}
	return stageNames
}

func needsCharacter(stages []string) bool {
	return slices.ContainsFunc(stages, func(s string) bool { return s != "split" })
}

func stagesFrom(stages []string, from string) []string {
	from = normalizeStage(from)
	for i, s := range stages {
		if s == from {
			return stages[i:]
		}
	}
	return stages
}

func normalizeStage(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func knownStage(s string) bool {
	return slices.Contains(stageNames, normalizeStage(s))
}
