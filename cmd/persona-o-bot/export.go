package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

func newExportCmd(run func(*cobra.Command, exportConfig) error) *cobra.Command {
	def := defaultExportConfig()
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert extracted chapter documents into a JSONL training set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return usageError(err)
			}
			cfg := exportConfig{
				commonConfig: common(v),
				Input:        cleanPath(v.GetString("input")),
				OutputDir:    cleanPath(v.GetString("out")),
				Character:    v.GetString("character"),
				Overwrite:    v.GetBool("overwrite"),
			}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}
			return run(cmd, cfg)
		},
	}
	cmd.Flags().String("input", def.Input, "Extraction output directory (cleaned_<character>_...) or a single document")
	cmd.Flags().String("out", def.OutputDir, "Directory for lora_dataset_<character>_<timestamp>.jsonl")
	cmd.Flags().String("character", "", "Character name (default: taken from the cleaned_<character>_ directory name)")
	cmd.Flags().Bool("overwrite", def.Overwrite, "Replace an existing dataset file")
	return cmd
}

func runExport(cmd *cobra.Command, cfg exportConfig) error {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	_, err = exportStage(cfg, logger, time.Now())
	return err
}

// exportStage writes the dataset and returns its path. An empty record set
// writes nothing.
func exportStage(cfg exportConfig, logger *log.Logger, at time.Time) (string, error) {
	character := cfg.Character
	if character == "" {
		character = corpus.CharacterFromOutputDir(cfg.Input)
	}
	if character == "" {
		return "", usageError(errors.New("missing --character and none found in the input directory name"))
	}

	records, st, err := corpus.ExportRecords(cfg.Input, character)
	if err != nil {
		return "", err
	}
	logger.Info("documents scanned",
		"files", st.Files,
		"files_used", st.FilesUsed,
		"unreadable", st.Unreadable,
		"dropped_units", st.DroppedUnit,
	)
	if len(records) == 0 {
		logger.Warn("no records to export", "input", cfg.Input)
		return "", nil
	}

	path := filepath.Join(cfg.OutputDir, corpus.DatasetFileName(character, at))
	if err := corpus.WriteRecordsJSONL(path, records, cfg.Overwrite); err != nil {
		return "", err
	}
	logger.Info("export finished", "records", len(records), "out", path)
	return path, nil
}
