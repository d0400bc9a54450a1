// main.go - load-testing harness CLI
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"loadcheck/internal/chart"
	"loadcheck/internal/harness"
	"loadcheck/internal/loadgen"
	"loadcheck/internal/results"
	"loadcheck/internal/stats"
)

var version = "0.1.0"

var (
	flagBinary         string
	flagDuration       time.Duration
	flagWorkers        int
	flagPath           string
	flagIDLimit        int
	flagMaxDelay       time.Duration
	flagServiceWorkers int
	flagColumns        int
	flagSave           bool
	flagDB             string
	flagCaptureLog     string
	flagNoColor        bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loadcheck",
	Short: "loadcheck - load-testing harness for the starcat service",
	Long: `loadcheck spawns the service under test on an ephemeral port, waits for
its workers to come up, drives GET load against it for a fixed duration,
and reports count/failure/latency statistics plus a per-second pass/fail
chart.

Examples:
  loadcheck run --binary ./starcat --duration 30s
  loadcheck run --workers 3 --max-delay 10ms --save
  loadcheck history`,
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Spawn the service and run one load test against it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoadTest()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printHistory()
	},
}

func init() {
	runCmd.Flags().StringVar(&flagBinary, "binary", "./starcat", "path to the service executable")
	runCmd.Flags().DurationVar(&flagDuration, "duration", 30*time.Second, "wall-clock test duration")
	runCmd.Flags().IntVar(&flagWorkers, "workers", 0, "concurrent load workers (0 = sequential)")
	runCmd.Flags().StringVar(&flagPath, "path", "people/0", "request path to hit")
	runCmd.Flags().IntVar(&flagIDLimit, "id-limit", 10, "service item limit for this run")
	runCmd.Flags().DurationVar(&flagMaxDelay, "max-delay", 0, "service artificial max delay for this run")
	runCmd.Flags().IntVar(&flagServiceWorkers, "service-workers", 2, "service worker count for this run")
	runCmd.Flags().IntVar(&flagColumns, "columns", 10, "chart width in cells")
	runCmd.Flags().BoolVar(&flagSave, "save", false, "persist the run to the results database")
	runCmd.Flags().StringVar(&flagDB, "db", "loadcheck.db", "results database path")
	runCmd.Flags().StringVar(&flagCaptureLog, "capture-log", "", "rotating file for captured service output")
	runCmd.Flags().BoolVar(&flagNoColor, "no-color", false, "disable chart colors")
	historyCmd.Flags().StringVar(&flagDB, "db", "loadcheck.db", "results database path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
}

func runLoadTest() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	svc, err := harness.Acquire(harness.Config{
		Binary:      flagBinary,
		Workers:     flagServiceWorkers,
		IDLimit:     flagIDLimit,
		MaxDelay:    flagMaxDelay,
		CaptureFile: flagCaptureLog,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Release(); err != nil {
			logger.Error("releasing service", slog.Any("error", err))
		}
	}()

	var strategy loadgen.Strategy
	strategyName := "sequential"
	if flagWorkers > 0 {
		strategy = loadgen.Concurrent{Path: flagPath, Workers: flagWorkers}
		strategyName = "concurrent"
	} else {
		strategy = loadgen.Sequential{Path: flagPath}
	}

	logger.Info("sending GET requests",
		slog.String("path", flagPath),
		slog.String("strategy", strategyName),
		slog.Int("workers", flagWorkers),
		slog.Duration("duration", flagDuration))

	issuer := svc.Issuer()
	start := time.Now()
	samples := strategy.Run(issuer.Issue, start.Add(flagDuration))

	summary, err := stats.Summarize(samples)
	if err != nil {
		return fmt.Errorf("summarizing run: %w", err)
	}

	logger.Info("run finished",
		slog.Int("requests", summary.Count),
		slog.Int("failed", summary.Failed),
		slog.String("meanLatency", fmt.Sprintf("%.5fs", summary.Mean)),
		slog.String("stdevLatency", fmt.Sprintf("%.5fs", summary.Stdev)))

	rendered, err := chart.Renderer{Columns: flagColumns, Color: useColor()}.Render(samples, start)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	fmt.Println()
	fmt.Print(rendered)

	if flagSave {
		if err := saveRun(logger, strategyName, samples, summary, start); err != nil {
			return err
		}
	}

	if summary.Failed > 0 {
		// The service's own diagnostics usually explain why requests
		// failed (overload, delays, restarts).
		for _, line := range svc.Diagnostics() {
			logger.Warn("service diagnostic", slog.String("line", line))
		}
		return fmt.Errorf("%d/%d requests failed", summary.Failed, summary.Count)
	}
	return nil
}

// useColor enables chart styling only on an interactive terminal, so
// piped or redirected output stays plain text.
func useColor() bool {
	return !flagNoColor && term.IsTerminal(int(os.Stdout.Fd()))
}

func saveRun(logger *slog.Logger, strategyName string, samples []loadgen.Sample, summary stats.Summary, start time.Time) error {
	store, err := results.Open(flagDB, logger)
	if err != nil {
		return err
	}
	plain, err := chart.Renderer{Columns: flagColumns}.Render(samples, start)
	if err != nil {
		return err
	}
	return store.Save(&results.Run{
		Strategy:        strategyName,
		Workers:         flagWorkers,
		Path:            flagPath,
		DurationSeconds: flagDuration.Seconds(),
		Requests:        summary.Count,
		Failed:          summary.Failed,
		MeanSec:         summary.Mean,
		StdevSec:        summary.Stdev,
		Chart:           plain,
	})
}

func printHistory() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := os.Stat(flagDB); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no results database at %s", flagDB)
	}

	store, err := results.Open(flagDB, logger)
	if err != nil {
		return err
	}
	runs, err := store.Recent(20)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTRATEGY\tWORKERS\tPATH\tREQUESTS\tFAILED\tMEAN\tSTDEV")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%.5fs\t%.5fs\n",
			r.CreatedAt.Format(time.RFC3339), r.Strategy, r.Workers, r.Path,
			r.Requests, r.Failed, r.MeanSec, r.StdevSec)
	}
	return w.Flush()
}
