package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
	"github.com/arin/streamrows/internal/controller"
	"github.com/arin/streamrows/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	rowsFlag      int
	urlFlag       string
	keyFlag       string
	modelFlag     string
	maxTokensFlag int
	timeoutFlag   time.Duration
	verbose       bool
	logLevel      string
	logFormat     string
)

var rootCmd = &cobra.Command{
	Use:   "streamrows",
	Short: "Stream one prompt into several completion rows at once",
	Long: `streamrows sends the same prompt to several OpenAI-compatible
chat completion endpoints and shows each row's answer as it streams in.

Every row is independent: it has its own endpoint, its own credential and
can be stopped or cleared without touching the others.

Examples:
  streamrows                          start an interactive session
  streamrows ask "Say hi"             one prompt, print every row, exit
  streamrows --rows 2 --url http://localhost:11434/v1/chat/completions
  streamrows config set-key sk-...`,
	RunE:              runSession,
	SilenceUsage:      true,
	SilenceErrors:     true,
	TraverseChildren:  true,
	Args:              cobra.NoArgs,
	PersistentPreRunE: validateFlags,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&rowsFlag, "rows", "n", 0, "Number of rows (default from config, 3)")
	pf.StringVar(&urlFlag, "url", "", "Endpoint URL for every row")
	pf.StringVar(&keyFlag, "key", "", "API key for every row (overrides config)")
	pf.StringVarP(&modelFlag, "model", "m", "", "Model name sent with each request")
	pf.IntVar(&maxTokensFlag, "max-tokens", 0, "Maximum tokens per completion")
	pf.DurationVar(&timeoutFlag, "timeout", 0, "Give up on a run after this long (0 = never)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log diagnostics at debug level")
	pf.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if rowsFlag < 0 {
		return fmt.Errorf("--rows must be positive (got: %d)", rowsFlag)
	}
	if maxTokensFlag < 0 {
		return fmt.Errorf("--max-tokens must be positive (got: %d)", maxTokensFlag)
	}
	if timeoutFlag < 0 {
		return fmt.Errorf("--timeout must not be negative (got: %s)", timeoutFlag)
	}
	return logging.Config{Level: logLevel, Format: logFormat}.Validate()
}

// loadConfig reads the stored configuration and applies command-line
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("rows") {
		cfg.Rows = rowsFlag
	}
	if flags.Changed("url") {
		cfg.Endpoint = urlFlag
	}
	if flags.Changed("key") {
		cfg.APIKey = keyFlag
	}
	if flags.Changed("model") {
		cfg.Model = modelFlag
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = maxTokensFlag
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeoutFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
}

// newController builds cfg.Rows independent rows. observer may be nil.
func newController(cfg *config.Config, log zerolog.Logger, observer ai.Observer) *controller.Controller {
	ctrl := controller.New()
	for _, name := range rowNames(cfg.Rows) {
		opts := []ai.Option{ai.WithLogger(log)}
		if observer != nil {
			opts = append(opts, ai.WithObserver(observer))
		}
		ctrl.Add(ai.NewClient(name, cfg, opts...))
	}
	return ctrl
}

func rowNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("row-%d", i+1)
	}
	return names
}

func warnMissingKey(cfg *config.Config) {
	if cfg.APIKey == "" {
		dim.Fprintln(os.Stderr, "  No API key configured. Run: streamrows config set-key <key>  (or use /key)")
	}
}
