package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. PERSONA_CHARACTER or
// PERSONA_MAX_IN_FLIGHT.
const envPrefix = "PERSONA"

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// usageError marks configuration problems (exit status 2).
func usageError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: 2, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// runners are the stage implementations behind each subcommand.
type runners struct {
	split    func(cmd *cobra.Command, cfg splitConfig) error
	extract  func(cmd *cobra.Command, cfg extractConfig) error
	validate func(cmd *cobra.Command, cfg validateConfig) error
	export   func(cmd *cobra.Command, cfg exportConfig) error
	pipeline func(cmd *cobra.Command, cfg pipelineConfig) error
}

func defaultRunners() runners {
	return runners{
		split:    runSplit,
		extract:  runExtract,
		validate: runValidate,
		export:   runExport,
		pipeline: runPipeline,
	}
}

func newRootCmd(r runners) *cobra.Command {
	root := &cobra.Command{
		Use:   "persona-o-bot",
		Short: "Turn a novel into a character-persona fine-tuning dataset",
		Long: `persona-o-bot extracts one character's interactions from a novel and
packages them as instruction-tuning records.

Stages:
  split     cut the raw novel into volume/chapter files
  extract   ask the model for the character's interaction units per chapter
  validate  check extracted documents against the output schema
  export    convert documents into a JSONL training set
  pipeline  run the stages above in order`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default: ./persona-o-bot.{json,yaml,toml} if present)")
	root.PersistentFlags().String("log-level", "info", "log level: debug|info|warn|error")

	root.AddCommand(
		newSplitCmd(r.split),
		newExtractCmd(r.extract),
		newValidateCmd(r.validate),
		newExportCmd(r.export),
		newPipelineCmd(r.pipeline),
	)
	return root
}

// loadViper layers flag > environment > config file > flag default for cmd.
func loadViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("persona-o-bot")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// cleanPath is filepath.Clean that keeps "" empty.
func cleanPath(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	return filepath.Clean(p)
}

func common(v *viper.Viper) commonConfig {
	return commonConfig{LogLevel: v.GetString("log-level")}
}

// apiKeyFromEnv prefers the DeepSeek variable, then the OpenAI one.
func apiKeyFromEnv() string {
	for _, k := range []string{"DEEPSEEK_API_KEY", "OPENAI_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func baseURLFromEnv() string {
	for _, k := range []string{"DEEPSEEK_BASE_URL", "OPENAI_BASE_URL"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
