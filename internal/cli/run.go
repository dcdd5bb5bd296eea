package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/flakewatch/internal/core/domain"
	"github.com/vietddude/flakewatch/internal/flaky"
	"github.com/vietddude/flakewatch/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <suite> [runs]",
	Short: "Execute a suite repeatedly and record each outcome",
	Args:  cobra.RangeArgs(1, 2),
	Run:   runSuite,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSuite(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	suite := args[0]
	runs := 5
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			slog.Error("Invalid run count", "value", args[1])
			os.Exit(1)
		}
		runs = n
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := flaky.NewStore(cfg.Results.Path)
	r := runner.New(cfg.Runner.RunnerOptions(), store)

	results, err := r.Run(ctx, suite, runs)
	if err != nil {
		slog.Error("Suite repetition aborted", "error", err)
		os.Exit(1)
	}

	counts := map[domain.TestStatus]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	fmt.Printf("Suite %q: %d runs, %d passed, %d failed, %d timed out\n",
		suite, len(results),
		counts[domain.StatusPassed], counts[domain.StatusFailed], counts[domain.StatusTimeout])
}
