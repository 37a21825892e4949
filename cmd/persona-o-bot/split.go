package main

import (
	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

func newSplitCmd(run func(*cobra.Command, splitConfig) error) *cobra.Command {
	def := defaultSplitConfig()
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a raw novel into volume and chapter files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return usageError(err)
			}
			cfg := splitConfig{
				commonConfig: common(v),
				Input:        cleanPath(v.GetString("input")),
				OutputDir:    cleanPath(v.GetString("out")),
				Overwrite:    v.GetBool("overwrite"),
			}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}
			return run(cmd, cfg)
		},
	}
	cmd.Flags().String("input", def.Input, "Path to the raw novel text (UTF-8 or GBK)")
	cmd.Flags().String("out", def.OutputDir, "Output directory for volume/chapter files")
	cmd.Flags().Bool("overwrite", def.Overwrite, "Remove an existing output directory first")
	return cmd
}

func runSplit(cmd *cobra.Command, cfg splitConfig) error {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	res, err := corpus.SplitNovel(cmd.Context(), cfg.Input, cfg.OutputDir, corpus.NovelSplitOptions{Overwrite: cfg.Overwrite})
	if err != nil {
		logger.Error("split failed", "input", cfg.Input, "error", err)
		return err
	}
	logger.Info("split finished",
		"volumes", len(res.Volumes),
		"chapters", res.ChaptersWritten,
		"bytes", res.BytesWritten,
		"out", cfg.OutputDir,
	)
	return nil
}
