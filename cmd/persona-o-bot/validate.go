package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/validate"
)

func newValidateCmd(run func(*cobra.Command, validateConfig) error) *cobra.Command {
	def := defaultValidateConfig()
	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Check extracted chapter documents against the output schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return usageError(err)
			}
			cfg := validateConfig{
				commonConfig: common(v),
				Path:         cleanPath(v.GetString("path")),
				SchemaFile:   cleanPath(v.GetString("schema")),
			}
			if len(args) == 1 {
				cfg.Path = cleanPath(args[0])
			}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}
			return run(cmd, cfg)
		},
	}
	cmd.Flags().String("path", def.Path, "Chapter document file or directory to validate")
	cmd.Flags().String("schema", def.SchemaFile, "Schema file: JSON Schema or an example document (default: built-in document schema)")
	return cmd
}

func runValidate(cmd *cobra.Command, cfg validateConfig) error {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	sum, err := validateStage(cfg, logger)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		logger.Warn("see the errors above for details", "failed", sum.Failed)
	}
	return nil
}

func validateStage(cfg validateConfig, logger *log.Logger) (validate.Summary, error) {
	v, err := validate.ForSchemaFile(cfg.SchemaFile)
	if err != nil {
		return validate.Summary{}, usageError(fmt.Errorf("load schema: %w", err))
	}
	return validate.ValidatePath(cfg.Path, v, logger)
}
