package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/flakewatch/internal/flaky"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-test statistics from the result log",
	Run:   runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	store := flaky.NewStore(cfg.Results.Path)
	results, err := store.Load()
	if err != nil {
		slog.Error("Failed to load result log", "error", err)
		os.Exit(1)
	}

	stats := flaky.Analyze(results)
	if len(stats) == 0 {
		fmt.Println("No recorded results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TEST\tRUNS\tPASSED\tFAILED\tTIMEOUTS\tSUCCESS\tSCORE\tLAST SEEN")
	for _, st := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.0f%%\t%.2f\t%s\n",
			st.Key(), st.TotalRuns, st.Passed, st.Failed, st.Timeouts,
			st.SuccessRate*100, st.FlakyScore, st.LastSeen.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
