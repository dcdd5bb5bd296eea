package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/flakewatch/internal/flaky"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the ranked flakiness report with recommendations",
	Run:   runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	store := flaky.NewStore(cfg.Results.Path)
	results, err := store.Load()
	if err != nil {
		slog.Error("Failed to load result log", "error", err)
		os.Exit(1)
	}

	stats := flaky.Analyze(results)
	report := flaky.BuildReport(stats, len(results))
	fmt.Print(report.Render())
}
