package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

func newPipelineCmd(run func(*cobra.Command, pipelineConfig) error) *cobra.Command {
	def := defaultPipelineConfig()
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run split, extract, validate and export in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return usageError(err)
			}
			ex := readExtractConfig(v, "split-dir")
			cfg := pipelineConfig{
				commonConfig: common(v),
				Split: splitConfig{
					commonConfig: common(v),
					Input:        cleanPath(v.GetString("novel-file")),
					OutputDir:    ex.InputRoot,
					Overwrite:    v.GetBool("overwrite-split"),
				},
				Extract: ex,
				Export: exportConfig{
					commonConfig: common(v),
					OutputDir:    cleanPath(v.GetString("export-dir")),
					Character:    ex.Character,
					Overwrite:    v.GetBool("overwrite-export"),
				},
				SchemaFile: cleanPath(v.GetString("validate-schema")),
				FromStage:  v.GetString("from-stage"),
				OnlyStage:  v.GetString("only-stage"),
			}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}
			return run(cmd, cfg)
		},
	}
	fs := cmd.Flags()
	fs.String("novel-file", def.Split.Input, "Raw novel text for the split stage")
	fs.Bool("overwrite-split", def.Split.Overwrite, "Re-split even if chapter files already exist")
	addExtractFlags(fs, def.Extract, "split-dir")
	fs.String("validate-schema", def.SchemaFile, "Schema file for the validate stage (default: built-in document schema)")
	fs.String("export-dir", def.Export.OutputDir, "Directory for the exported JSONL training set")
	fs.Bool("overwrite-export", def.Export.Overwrite, "Replace an existing dataset file")
	fs.String("from-stage", "", "Start at stage: "+strings.Join(stageNames, "|"))
	fs.String("only-stage", "", "Run only one stage: "+strings.Join(stageNames, "|"))
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg pipelineConfig) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	outRoot := cfg.Extract.OutputRoot
	resolveOutRoot := func() (string, error) {
		if outRoot != "" {
			return outRoot, nil
		}
		return latestOutputRoot(cfg.Extract.DatasetDir, cfg.Extract.Character)
	}

	for _, stage := range cfg.stages() {
		start := time.Now()
		switch stage {
		case "split":
			if !cfg.Split.Overwrite && dirHasVolumes(cfg.Split.OutputDir) {
				logger.Info("skip split: chapters already exist", "dir", cfg.Split.OutputDir)
				continue
			}
			res, err := corpus.SplitNovel(ctx, cfg.Split.Input, cfg.Split.OutputDir, corpus.NovelSplitOptions{Overwrite: cfg.Split.Overwrite})
			if err != nil {
				logger.Error("split failed", "input", cfg.Split.Input, "error", err)
				return err
			}
			logger.Info("split finished", "volumes", len(res.Volumes), "chapters", res.ChaptersWritten)
		case "extract":
			root, paths, err := extractStage(ctx, cfg.Extract, cmd.ErrOrStderr(), start)
			if err != nil {
				return err
			}
			outRoot = root
			if len(paths) == 0 {
				logger.Warn("no chapter files were generated; stopping", "output", root)
				return nil
			}
			logger.Info("extract stage finished", "files", len(paths), "output", root)
		case "validate":
			root, err := resolveOutRoot()
			if err != nil {
				return err
			}
			sum, err := validateStage(validateConfig{commonConfig: cfg.commonConfig, Path: root, SchemaFile: cfg.SchemaFile}, logger)
			if err != nil {
				return err
			}
			logger.Info("validate stage finished", "total", sum.Total, "passed", sum.Passed, "failed", sum.Failed)
			if sum.Failed > 0 {
				logger.Warn("see the validation errors above for details")
			}
		case "export":
			root, err := resolveOutRoot()
			if err != nil {
				return err
			}
			exp := cfg.Export
			exp.Input = root
			if _, err := exportStage(exp, logger, start); err != nil {
				return err
			}
		default:
			return usageError(fmt.Errorf("unknown stage: %s", stage))
		}
		logger.Debug("stage done", "stage", stage, "took", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// latestOutputRoot finds the most recently modified cleaned_<character>_*
// directory under datasetDir.
func latestOutputRoot(datasetDir, character string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(datasetDir, "cleaned_"+character+"_*"))
	if err != nil {
		return "", err
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = m, info.ModTime()
		}
	}
	if best == "" {
		return "", errors.New("no extraction output found for " + character + " under " + datasetDir + " (use --output-root)")
	}
	return best, nil
}

func dirHasVolumes(dir string) bool {
	vols, err := corpus.DiscoverVolumes(dir, "")
	return err == nil && len(vols) > 0
}
