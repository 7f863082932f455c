// Package local runs jobs as sibling OS processes on the coordinating
// machine. No cross-host staging is involved, but every job still gets its
// own scratch directory: the engine writes in place, so two concurrent jobs
// must never share a working directory.
package local

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/job"
	"simdispatch/internal/staging"
	"simdispatch/internal/worker"
)

// Config holds the local backend's configuration.
type Config struct {
	Engine    string   `yaml:"engine"`    // engine binary path
	CoresArg  string   `yaml:"coresArg"`  // flag carrying the core count (default: -cores)
	ExtraArgs []string `yaml:"extraArgs"` // fixed arguments placed before the core count
	WorkRoot  string   `yaml:"workRoot"`  // scratch root (default: os.TempDir())
}

// Worker executes jobs as child processes.
type Worker struct {
	worker.Base
	cfg    Config
	logger *slog.Logger
}

// New validates the configuration and creates a local worker.
func New(opts worker.Options, cfg Config) (*Worker, error) {
	base, err := worker.NewBase(worker.KindLocal, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Engine == "" {
		return nil, apperrors.Config("local.engine", "engine binary path is required")
	}
	if cfg.CoresArg == "" {
		cfg.CoresArg = "-cores"
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	return &Worker{
		Base:   base,
		cfg:    cfg,
		logger: slog.With("workerId", base.ID(), "backend", worker.KindLocal),
	}, nil
}

// Ready verifies the engine binary is present and executable.
func (w *Worker) Ready(ctx context.Context) error {
	if _, err := exec.LookPath(w.cfg.Engine); err != nil {
		return apperrors.Config("local.engine", err.Error())
	}
	return nil
}

// Execute runs the engine in a scoped scratch directory, verifies the
// expected artifact, and copies it back beside the job's inputs.
func (w *Worker) Execute(ctx context.Context, j job.Job) job.Outcome {
	start := time.Now()
	logger := w.logger.With("jobId", j.ID)

	scratch, err := staging.ScopedDir(w.cfg.WorkRoot, j.ID)
	if err != nil {
		return job.Failed(j.ID, w.ID(), err, time.Since(start))
	}

	outcome := w.run(ctx, logger, j, scratch, start)

	if w.Autoclean() {
		if err := staging.Cleanup(scratch); err != nil {
			logger.Warn("Failed to remove scratch directory", "dir", scratch, "error", err)
		}
	} else {
		outcome.StagingDir = scratch
		logger.Info("Scratch directory kept", "dir", scratch)
	}

	outcome.Duration = time.Since(start)
	return outcome
}

func (w *Worker) run(ctx context.Context, logger *slog.Logger, j job.Job, scratch string, start time.Time) job.Outcome {
	if err := staging.CopyDir(scratch, j.InputDir); err != nil {
		return job.Failed(j.ID, w.ID(), err, 0)
	}

	args := slices.Clone(w.cfg.ExtraArgs)
	args = append(args, w.cfg.CoresArg, strconv.Itoa(j.Cores))

	cmd := exec.CommandContext(ctx, w.cfg.Engine, args...)
	cmd.Dir = scratch
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Info("Starting engine", "cores", j.Cores, "dir", scratch)
	err := cmd.Run()

	if ctx.Err() != nil {
		// CommandContext already killed the process on deadline expiry.
		return job.Failed(j.ID, w.ID(), apperrors.Timeout("local.run", time.Since(start).Round(time.Second)), 0)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Warn("Engine failed", "exitCode", exitErr.ExitCode(), "stderr", stderr.String())
			return job.Failed(j.ID, w.ID(), apperrors.Process("local.run", exitErr.ExitCode()), 0)
		}
		return job.Failed(j.ID, w.ID(), apperrors.Internal("local.start", err), 0)
	}

	artifact, err := staging.VerifyArtifact(scratch, j.Artifact)
	if err != nil {
		return job.Failed(j.ID, w.ID(), err, 0)
	}

	dest := filepath.Join(j.InputDir, j.Artifact)
	if err := staging.CopyFile(dest, artifact); err != nil {
		return job.Failed(j.ID, w.ID(), err, 0)
	}

	logger.Info("Engine finished", "artifact", dest)
	return job.Succeeded(j.ID, w.ID(), dest, 0)
}

// Verify Worker implements worker.Worker
var _ worker.Worker = (*Worker)(nil)
