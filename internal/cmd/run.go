package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"simdispatch/internal/config"
	"simdispatch/internal/dispatcher"
	"simdispatch/internal/job"
	"simdispatch/internal/observability"
	"simdispatch/internal/scheduler"
	"simdispatch/internal/worker"
	"simdispatch/internal/worker/factory"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute all jobs in a run manifest",
	Long: `Execute every job in the manifest against the declared worker pool and
print the result ledger. The exit status is non-zero when any job failed.

Example:
  simdispatch run --manifest run.yaml
  simdispatch run --manifest run.yaml --callback-url https://hooks.example.com/runs
  simdispatch run --manifest run.yaml --keep-staging`,
	RunE: runRun,
}

var (
	runManifestPath string
	runTimeout      time.Duration
	runCallbackURL  string
	runCallbackKey  string
	runMetricsPort  string
	runKeepStaging  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runManifestPath, "manifest", "m", "", "Path to run manifest (required)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Default per-job timeout, overrides the manifest")
	runCmd.Flags().StringVar(&runCallbackURL, "callback-url", "", "Webhook URL for run events, overrides the manifest")
	runCmd.Flags().StringVar(&runCallbackKey, "callback-key", "", "HMAC key for signing run events")
	runCmd.Flags().StringVar(&runMetricsPort, "metrics-port", "", "Serve Prometheus metrics on this port")
	runCmd.Flags().BoolVar(&runKeepStaging, "keep-staging", false, "Keep staged copies for debugging instead of cleaning up")

	_ = runCmd.MarkFlagRequired("manifest")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svcCfg := config.LoadServiceConfig()
	manifest, err := config.LoadManifest(runManifestPath)
	if err != nil {
		return err
	}

	specs := manifest.Workers
	if runKeepStaging || svcCfg.KeepStaging {
		off := false
		for i := range specs {
			specs[i].Options.Autoclean = &off
		}
	}

	pool, err := factory.NewPool(specs)
	if err != nil {
		return err
	}
	defer closePool(pool)

	defaultTimeout := svcCfg.DefaultTimeout
	if manifest.DefaultTimeout > 0 {
		defaultTimeout = manifest.DefaultTimeout
	}
	if runTimeout > 0 {
		defaultTimeout = runTimeout
	}

	callback := manifest.Callback
	if runCallbackURL != "" {
		callback = &job.Callback{URL: runCallbackURL, Key: runCallbackKey}
	}

	var metrics *observability.Metrics
	metricsPort := runMetricsPort
	if metricsPort == "" {
		metricsPort = svcCfg.MetricsPort
	}
	if metricsPort != "" {
		m, handler, err := observability.NewMetrics(ctx)
		if err != nil {
			return err
		}
		metrics = m
		go serveMetrics(metricsPort, handler)
	}

	var eventDispatcher dispatcher.Dispatcher
	if callback != nil && callback.URL != "" {
		d := dispatcher.NewMemory(dispatcher.LoadConfigFromEnv(), metricsRecorder(metrics))
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := d.Close(drainCtx); err != nil {
				slog.Warn("Dispatcher drain incomplete", "error", err)
			}
		}()
		eventDispatcher = d
	}

	coord, err := scheduler.New(pool, scheduler.Config{
		DefaultTimeout: defaultTimeout,
		Grace:          svcCfg.Grace,
		Metrics:        metrics,
		Dispatcher:     eventDispatcher,
		Callback:       callback,
	})
	if err != nil {
		return err
	}

	if failures := coord.Preflight(ctx); len(failures) > 0 {
		for id, err := range failures {
			fmt.Fprintf(os.Stderr, "warning: worker %s is not ready: %v\n", id, err)
		}
	}

	ledger, err := coord.Run(ctx, manifest.Jobs)
	if err != nil {
		return err
	}

	printLedger(ledger)

	if failed := len(ledger.Failures()); failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(ledger))
	}
	return nil
}

// metricsRecorder converts the optional metrics pointer for the dispatcher.
// Assigning a nil *observability.Metrics straight into the interface would
// produce a non-nil interface holding a nil pointer, defeating the
// dispatcher's nil checks.
func metricsRecorder(m *observability.Metrics) dispatcher.MetricsRecorder {
	if m == nil {
		return nil
	}
	return m
}

// closePool releases backend clients held by workers that own one.
func closePool(pool []worker.Worker) {
	for _, w := range pool {
		c, ok := w.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close worker", "workerId", w.ID(), "error", err)
		}
	}
}

func serveMetrics(port string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	slog.Info("Starting metrics server", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server failed", "error", err)
	}
}

// printLedger writes the per-job summary to stdout, silent failures last so
// they are the most visible thing in a scrollback.
func printLedger(ledger job.Ledger) {
	ids := make([]string, 0, len(ledger))
	for id := range ledger {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		o := ledger[id]
		switch {
		case o.Success:
			fmt.Printf("ok\t%s\tworker=%s\tduration=%s\tartifact=%s\n",
				id, o.WorkerID, o.Duration.Round(time.Second), o.ArtifactPath)
		default:
			fmt.Printf("FAIL\t%s\tworker=%s\tcategory=%s\terror=%s\n",
				id, o.WorkerID, o.Category, o.Err)
		}
	}

	fmt.Printf("\n%d jobs: %d succeeded, %d failed\n",
		len(ledger), ledger.Succeeded(), len(ledger.Failures()))

	if silent := ledger.SilentFailures(); len(silent) > 0 {
		fmt.Printf("\nWARNING: %d job(s) exited cleanly but produced no output artifact.\n", len(silent))
		fmt.Println("This is the signature of a session or staging misconfiguration; the results do not exist.")
		for _, o := range silent {
			fmt.Printf("  %s on worker %s\n", o.JobID, o.WorkerID)
		}
	}
}
