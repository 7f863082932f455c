package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"simdispatch/internal/config"
	"simdispatch/internal/scheduler"
	"simdispatch/internal/worker"
	"simdispatch/internal/worker/factory"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Validate a manifest and probe every worker's backend",
	Long: `Validate the manifest, construct every worker, and probe each backend
without running any jobs. Use this before committing a long run to a
misconfigured pool.

Example:
  simdispatch preflight --manifest run.yaml`,
	RunE: runPreflight,
}

var preflightManifestPath string

func init() {
	rootCmd.AddCommand(preflightCmd)

	preflightCmd.Flags().StringVarP(&preflightManifestPath, "manifest", "m", "", "Path to run manifest (required)")
	_ = preflightCmd.MarkFlagRequired("manifest")
}

func runPreflight(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manifest, err := config.LoadManifest(preflightManifestPath)
	if err != nil {
		return err
	}

	pool, err := factory.NewPool(manifest.Workers)
	if err != nil {
		return err
	}
	defer closePool(pool)

	coord, err := scheduler.New(pool, scheduler.Config{})
	if err != nil {
		return err
	}

	failures := coord.Preflight(ctx)
	for _, w := range pool {
		if err, ok := failures[w.ID()]; ok {
			fmt.Fprintf(os.Stderr, "FAIL\t%s\t%s\tslots=%d\t%v\n", w.ID(), w.Kind(), worker.MaxConcurrent(w), err)
			continue
		}
		fmt.Printf("ok\t%s\t%s\tslots=%d\n", w.ID(), w.Kind(), worker.MaxConcurrent(w))
	}
	fmt.Printf("\n%d workers, %d jobs, %d not ready\n", len(pool), len(manifest.Jobs), len(failures))

	if len(failures) > 0 {
		return fmt.Errorf("%d worker(s) failed preflight", len(failures))
	}
	return nil
}
