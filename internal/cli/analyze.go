package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/flakewatch/internal/flaky"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score recorded test results for flakiness",
	Run:   runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	store := flaky.NewStore(cfg.Results.Path)
	results, err := store.Load()
	if err != nil {
		slog.Error("Failed to load result log", "error", err)
		os.Exit(1)
	}

	stats := flaky.Analyze(results)
	flagged := flaky.FlakyTests(stats)

	if len(flagged) == 0 {
		fmt.Printf("No flaky tests found across %d recorded results\n", len(results))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RISK\tTEST\tSCORE\tSUCCESS\tRUNS\tTIMEOUTS")
	for _, ft := range flagged {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%.0f%%\t%d\t%d\n",
			ft.Risk, ft.Key(), ft.FlakyScore, ft.SuccessRate*100, ft.TotalRuns, ft.Timeouts)
	}
	_ = w.Flush()
}
