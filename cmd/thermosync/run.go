package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alfacon/thermosync/pkg/artifact"
	"github.com/alfacon/thermosync/pkg/config"
	"github.com/alfacon/thermosync/pkg/coordinator"
	"github.com/alfacon/thermosync/pkg/discovery"
	"github.com/alfacon/thermosync/pkg/dispatch"
	"github.com/alfacon/thermosync/pkg/log"
	"github.com/alfacon/thermosync/pkg/metrics"
	"github.com/alfacon/thermosync/pkg/retry"
	"github.com/alfacon/thermosync/pkg/thinger"
	"github.com/alfacon/thermosync/pkg/types"
	"github.com/alfacon/thermosync/pkg/weather"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one discovery-then-dispatch run",
	Long: `Execute one full run: sweep the candidate identifier space, fetch the
current weather reading, and push the temperature to every reachable
device.

Exit codes: 0 passed, 1 failed (success ratio below threshold),
2 aborted (configuration, discovery or weather failure).`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Errorf("metrics listener stopped", err)
			}
		}()
	}

	ctx, cancel := signalContext()
	defer cancel()

	coord := buildCoordinator(cfg)
	sinks, cleanup, err := buildSinks(cfg)
	if err != nil {
		// Diagnostic sinks are best-effort even at setup time.
		log.Errorf("diagnostic sink setup failed", err)
	}
	defer cleanup()
	for _, sink := range sinks {
		coord.AddSink(sink)
	}

	summary := coord.Run(ctx)
	printSummary(summary)

	switch summary.Status {
	case types.RunPassed:
		return nil
	case types.RunFailed:
		os.Exit(1)
	default:
		os.Exit(2)
	}
	return nil
}

// buildCoordinator wires the concrete clients into the coordinator.
func buildCoordinator(cfg *config.Config) *coordinator.Coordinator {
	platform := thinger.NewClient(cfg.Server, cfg.Username, cfg.Token).
		WithTimeouts(cfg.ProbeTimeout, cfg.PushTimeout).
		WithPushRetry(retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay})

	weatherClient := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.Latitude, cfg.Longitude).
		WithTimeout(cfg.WeatherTimeout).
		WithRetry(retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay})

	disc := discovery.NewDiscoverer(platform, cfg.ProbeConcurrency)
	disp := dispatch.NewDispatcher(platform, cfg.BatchSize, cfg.BatchConcurrency, cfg.DispatchDelay)

	return coordinator.New(cfg, disc, weatherClient, disp)
}

// buildSinks assembles the configured diagnostic sinks.
func buildSinks(cfg *config.Config) ([]artifact.Sink, func(), error) {
	var sinks []artifact.Sink
	cleanup := func() {}

	if cfg.SnapshotPath != "" {
		sinks = append(sinks, &artifact.SnapshotWriter{Path: cfg.SnapshotPath})
	}
	if cfg.HeartbeatPath != "" {
		sinks = append(sinks, &artifact.Heartbeat{Path: cfg.HeartbeatPath})
	}
	if cfg.HistoryPath != "" {
		store, err := artifact.NewHistoryStore(cfg.HistoryPath)
		if err != nil {
			return sinks, cleanup, err
		}
		sinks = append(sinks, store)
		cleanup = func() { _ = store.Close() }
	}

	return sinks, cleanup, nil
}

func printSummary(summary types.RunSummary) {
	fmt.Println("Run summary")
	fmt.Printf("  Run ID:        %s\n", summary.RunID)
	fmt.Printf("  Status:        %s\n", summary.Status)
	if summary.AbortReason != "" {
		fmt.Printf("  Abort reason:  %s\n", summary.AbortReason)
	}
	fmt.Printf("  Searched:      %d\n", summary.Searched)
	fmt.Printf("  Reachable:     %d\n", summary.Reachable)
	fmt.Printf("  Delivered:     %d\n", summary.Delivered)
	fmt.Printf("  Failed:        %d\n", summary.Failed)
	fmt.Printf("  Not found:     %d\n", summary.NotFound)
	fmt.Printf("  Success ratio: %.1f%%\n", summary.SuccessRatio*100)
	fmt.Printf("  Duration:      %s\n", summary.Duration.Round(time.Millisecond))
}
