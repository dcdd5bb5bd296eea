package cli

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/flakewatch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "flakewatch",
	Short: "Test-reliability toolkit",
	Long: `Flakewatch keeps a test suite trustworthy: per-test database isolation,
a cleanup fallback cascade, transient-failure retries, and statistical
flakiness detection over repeated-run history.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		slogLevel := slog.LevelInfo
		if isDebug {
			slogLevel = slog.LevelDebug
		}
		stylelog.InitDefault(&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	},
}

// Execute runs the CLI. All subcommands exit 0 on normal completion:
// flakiness findings are advisory and never fail the invocation.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "flakewatch.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig falls back to defaults when the default config file is
// absent, so the analysis commands work without any setup.
func loadConfig() *config.AppConfig {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Config file not found, using defaults", "path", cfgPath)
			return config.Default()
		}
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}
