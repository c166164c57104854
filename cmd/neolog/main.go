// Package main provides the CLI entrypoint for neolog.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/neolog/internal/config"
	"github.com/verte-zerg/neolog/internal/model"
	"github.com/verte-zerg/neolog/internal/texts"
	"github.com/verte-zerg/neolog/internal/wordlist"
)

var (
	expLang              string
	expWords             string
	expMaxAttempts       int
	expDefinitionSeconds float64
	expBlinkSeconds      float64
	expSections          []string
	expWidth             int
	expHeight            int
	expShuffle           bool
	expSeed              int64
	expCheckpoint        bool

	pathTexts   string
	pathStimuli string
	pathData    string
	pathLogs    string
	pathDB      string

	logFormat string
	logLevel  string
)

// pathSettings are the resolved resource and output locations plus the
// operator log settings.
type pathSettings struct {
	Texts     string
	Stimuli   string
	Data      string
	Logs      string
	DB        string
	LogFormat string
	LogLevel  string
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "neolog",
		Short:         "Neologism typing experiment",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runExperimentCmd,
	}

	addExperimentFlags(rootCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&pathTexts, "texts", config.DefaultTextsDir(), "directory with <lang>_instructions.md and <lang>_ui.md")
	pf.StringVar(&pathStimuli, "stimuli", config.DefaultStimuliDir(), "directory with <lang>_words.csv")
	pf.StringVar(&pathData, "data", config.DefaultDataDir(), "output directory for keystroke logs")
	pf.StringVar(&pathLogs, "logs", config.DefaultLogDir(), "directory for operator logs")
	pf.StringVar(&pathDB, "db", config.DefaultDBPath(), "session archive database (empty disables it)")
	pf.StringVar(&logFormat, "log-format", "text", "operator log format (text, json)")
	pf.StringVar(&logLevel, "log-level", "info", "operator log level (debug, info, warn, error)")

	rootCmd.AddCommand(newPilotCmd())
	rootCmd.AddCommand(newLangsCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addExperimentFlags(cmd *cobra.Command) {
	defaults := model.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&expLang, "lang", defaults.Lang, "default language code")
	f.StringVar(&expWords, "words", defaults.WordCount, "number of words, or 'all'")
	f.IntVar(&expMaxAttempts, "max-attempts", defaults.MaxAttempts, "attempts per word")
	f.Float64Var(&expDefinitionSeconds, "definition-seconds", defaults.DefinitionDuration.Seconds(), "how long a definition is shown")
	f.Float64Var(&expBlinkSeconds, "blink-seconds", defaults.BlinkInterval.Seconds(), "caret and continue label blink interval")
	f.StringSliceVar(&expSections, "sections", defaults.InstructionSections, "instruction sections shown before the trials")
	f.IntVar(&expWidth, "width", defaults.Width, "maximum content width in cells (0: terminal width)")
	f.IntVar(&expHeight, "height", defaults.Height, "maximum content height in lines (0: terminal height)")
	f.BoolVar(&expShuffle, "shuffle", defaults.Shuffle, "shuffle the word list")
	f.Int64Var(&expSeed, "seed", 0, "random seed (0: time based)")
	f.BoolVar(&expCheckpoint, "checkpoint", defaults.Checkpoint, "write an intermediate log after every trial")
}

// resolveSettings merges the config file under explicitly set flags.
func resolveSettings(cmd *cobra.Command) (model.Config, pathSettings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, pathSettings{}, fmt.Errorf("failed to load config: %w", err)
	}
	exp := fileCfg.Experiment
	applyStringConfig(cmd, "lang", &expLang, exp.Lang)
	applyStringConfig(cmd, "words", &expWords, exp.Words)
	applyIntConfig(cmd, "max-attempts", &expMaxAttempts, exp.MaxAttempts)
	applyFloatConfig(cmd, "definition-seconds", &expDefinitionSeconds, exp.DefinitionSeconds)
	applyFloatConfig(cmd, "blink-seconds", &expBlinkSeconds, exp.BlinkSeconds)
	applyStringSliceConfig(cmd, "sections", &expSections, exp.InstructionSections)
	applyIntConfig(cmd, "width", &expWidth, exp.Width)
	applyIntConfig(cmd, "height", &expHeight, exp.Height)
	applyBoolConfig(cmd, "shuffle", &expShuffle, exp.Shuffle)
	applyInt64Config(cmd, "seed", &expSeed, exp.Seed)
	applyBoolConfig(cmd, "checkpoint", &expCheckpoint, exp.Checkpoint)

	cfg := model.Config{
		Lang:                strings.TrimSpace(expLang),
		WordCount:           strings.TrimSpace(expWords),
		MaxAttempts:         expMaxAttempts,
		DefinitionDuration:  seconds(expDefinitionSeconds),
		BlinkInterval:       seconds(expBlinkSeconds),
		InstructionSections: expSections,
		Width:               expWidth,
		Height:              expHeight,
		Shuffle:             expShuffle,
		Seed:                expSeed,
		Checkpoint:          expCheckpoint,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, pathSettings{}, err
	}
	return cfg, applyPathConfig(cmd, fileCfg), nil
}

// resolvePaths is resolveSettings for commands that only read or write files.
func resolvePaths(cmd *cobra.Command) (pathSettings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return pathSettings{}, fmt.Errorf("failed to load config: %w", err)
	}
	return applyPathConfig(cmd, fileCfg), nil
}

func applyPathConfig(cmd *cobra.Command, fileCfg config.FileConfig) pathSettings {
	paths := fileCfg.Paths
	applyStringConfig(cmd, "texts", &pathTexts, paths.Texts)
	applyStringConfig(cmd, "stimuli", &pathStimuli, paths.Stimuli)
	applyStringConfig(cmd, "data", &pathData, paths.Data)
	applyStringConfig(cmd, "logs", &pathLogs, paths.Logs)
	applyStringConfig(cmd, "db", &pathDB, paths.DB)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Logging.Format)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Logging.Level)
	return pathSettings{
		Texts:     pathTexts,
		Stimuli:   pathStimuli,
		Data:      pathData,
		Logs:      pathLogs,
		DB:        pathDB,
		LogFormat: logFormat,
		LogLevel:  logLevel,
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func validateConfig(cfg model.Config) error {
	if cfg.Lang == "" {
		return fmt.Errorf("--lang must not be empty")
	}
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("--max-attempts must be > 0")
	}
	if cfg.DefinitionDuration < 0 {
		return fmt.Errorf("--definition-seconds must be >= 0")
	}
	if cfg.BlinkInterval <= 0 {
		return fmt.Errorf("--blink-seconds must be > 0")
	}
	if cfg.Width < 0 {
		return fmt.Errorf("--width must be >= 0")
	}
	if cfg.Height < 0 {
		return fmt.Errorf("--height must be >= 0")
	}
	return nil
}

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List languages with instruction texts",
		Args:  cobra.NoArgs,
		RunE:  runLangsCmd,
	}
}

func runLangsCmd(cmd *cobra.Command, _ []string) error {
	paths, err := resolvePaths(cmd)
	if err != nil {
		return err
	}
	provider, err := texts.Load(paths.Texts)
	if err != nil {
		return fmt.Errorf("failed to load texts: %w", err)
	}
	langs := provider.Languages()
	if len(langs) == 0 {
		logErrf("No instruction texts found in %s\n", paths.Texts)
		return fmt.Errorf("no languages found")
	}
	for _, lang := range langs {
		line := lang
		if _, err := os.Stat(wordlist.PathFor(paths.Stimuli, lang)); err != nil {
			line += " (no stimuli)"
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	defaults := model.DefaultConfig()
	return fmt.Sprintf(`# neolog configuration
# Uncomment a value to enable it. CLI flags override config values.

[experiment]
# lang = %q                 # Default language code
# words = %q               # Number of words, or "all"
# max-attempts = %d           # Attempts per word
# definition-seconds = %.1f   # How long a definition is shown
# blink-seconds = %.1f        # Caret and continue label blink interval
# instruction-sections = [%s]
# width = %d                # Maximum content width in cells
# height = %d                # Maximum content height in lines
# shuffle = true
# seed = 0                    # 0 picks a time based seed
# checkpoint = true           # Intermediate log after every trial

[paths]
# texts = %q
# stimuli = %q
# data = %q
# logs = %q
# db = %q

[logging]
# format = "text"             # text or json
# level = "info"              # debug, info, warn or error
`,
		defaults.Lang,
		defaults.WordCount,
		defaults.MaxAttempts,
		defaults.DefinitionDuration.Seconds(),
		defaults.BlinkInterval.Seconds(),
		quoteList(defaults.InstructionSections),
		defaults.Width,
		defaults.Height,
		config.DefaultTextsDir(),
		config.DefaultStimuliDir(),
		config.DefaultDataDir(),
		config.DefaultLogDir(),
		config.DefaultDBPath(),
	)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target, value *[]string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), (*value)...)
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
