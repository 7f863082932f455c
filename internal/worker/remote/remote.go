// Package remote runs jobs on a remote host inside a real interactive logon
// session.
//
// The engine is a GUI-capable program: launched under a background or service
// identity it appears to start, exits 0, and performs no work because it
// cannot attach to a desktop. The session ID is therefore explicit
// configuration obtained out-of-band, and artifact verification is the
// mandatory success post-condition; the exit code alone proves nothing.
//
// Inputs travel over a network share visible to both sides. The coordinator
// writes to the share under its own mount point and tells the remote host the
// equivalent path in its namespace via the configured path mapping.
package remote

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/job"
	"simdispatch/internal/staging"
	"simdispatch/internal/worker"
	"simdispatch/pkg/backoff"
	"simdispatch/pkg/circuitbreaker"
)

// errCircuitOpen fails jobs fast while the host breaker is open.
var errCircuitOpen = errors.New("host marked unreachable after repeated connection failures")

// Config holds the remote-session backend's configuration.
type Config struct {
	Host      string          `yaml:"host"`      // remote host name or address
	SessionID int             `yaml:"sessionId"` // interactive session the engine attaches to
	Engine    string          `yaml:"engine"`    // engine path as the remote host sees it
	CoresArg  string          `yaml:"coresArg"`  // flag carrying the core count (default: -cores)
	Share     staging.PathMap `yaml:"share"`     // coordinator-visible vs remote-visible staging root
	Launcher  string          `yaml:"launcher"`  // session-launch utility on the coordinator

	// LaunchClient overrides the default utility-backed launcher. Tests and
	// alternative transports inject here.
	LaunchClient Launcher `yaml:"-"`

	// Poll tunes the completion-polling schedule. Zero uses 2s doubling to 30s.
	Poll backoff.Policy `yaml:"-"`
}

// Worker executes jobs on a session-bound remote host.
type Worker struct {
	worker.Base
	cfg      Config
	launcher Launcher
	poll     backoff.Policy
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger
}

// New validates the configuration and creates a remote-session worker.
func New(opts worker.Options, cfg Config) (*Worker, error) {
	base, err := worker.NewBase(worker.KindRemoteSession, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return nil, apperrors.Config("remote.host", "remote host is required")
	}
	if cfg.SessionID < 1 {
		// Session 0 is the non-interactive services session: the engine would
		// launch, exit 0, and produce nothing. Refuse it outright.
		return nil, apperrors.Config("remote.sessionId",
			"an interactive session ID (>= 1) is required; query the host's active sessions to obtain it")
	}
	if cfg.Engine == "" {
		return nil, apperrors.Config("remote.engine", "engine path on the remote host is required")
	}
	if err := cfg.Share.Validate(); err != nil {
		return nil, err
	}
	if cfg.CoresArg == "" {
		cfg.CoresArg = "-cores"
	}

	launcher := cfg.LaunchClient
	if launcher == nil {
		if cfg.Launcher == "" {
			return nil, apperrors.Config("remote.launcher", "session-launch utility path is required")
		}
		launcher = newToolLauncher(cfg.Launcher)
	}

	poll := cfg.Poll
	if poll == (backoff.Policy{}) {
		poll = backoff.Policy{Initial: 2 * time.Second, Max: 30 * time.Second}
	}

	return &Worker{
		Base:     base,
		cfg:      cfg,
		launcher: launcher,
		poll:     poll,
		breaker:  circuitbreaker.New(circuitbreaker.Config{}),
		logger:   slog.With("workerId", base.ID(), "backend", worker.KindRemoteSession, "host", cfg.Host),
	}, nil
}

// Ready probes the remote host.
func (w *Worker) Ready(ctx context.Context) error {
	return w.launcher.Ping(ctx, w.cfg.Host)
}

// Execute stages inputs onto the share, launches the engine bound to the
// configured session, polls until exit or deadline, copies outputs back, and
// verifies the artifact before reporting success.
func (w *Worker) Execute(ctx context.Context, j job.Job) job.Outcome {
	start := time.Now()
	logger := w.logger.With("jobId", j.ID)

	if !w.breaker.Allow() {
		return job.Failed(j.ID, w.ID(), apperrors.Connectivity("remote.launch", errCircuitOpen), time.Since(start))
	}

	stage, err := staging.ScopedDir(w.cfg.Share.LocalRoot, j.ID)
	if err != nil {
		return job.Failed(j.ID, w.ID(), err, time.Since(start))
	}

	outcome := w.run(ctx, logger, j, stage, start)

	if w.Autoclean() {
		if err := staging.Cleanup(stage); err != nil {
			logger.Warn("Failed to remove staged copy", "dir", stage, "error", err)
		}
	} else {
		outcome.StagingDir = stage
		logger.Info("Staged copy kept", "dir", stage)
	}

	outcome.Duration = time.Since(start)
	return outcome
}

func (w *Worker) run(ctx context.Context, logger *slog.Logger, j job.Job, stage string, start time.Time) job.Outcome {
	if err := staging.CopyDir(stage, j.InputDir); err != nil {
		return job.Failed(j.ID, w.ID(), err, 0)
	}

	remoteDir, err := w.cfg.Share.Rebase(stage)
	if err != nil {
		return job.Failed(j.ID, w.ID(), err, 0)
	}

	logger.Info("Launching engine in session", "session", w.cfg.SessionID, "remoteDir", remoteDir)
	proc, err := w.launcher.Start(ctx, LaunchSpec{
		Host:      w.cfg.Host,
		SessionID: w.cfg.SessionID,
		WorkDir:   remoteDir,
		Command:   w.cfg.Engine,
		Args:      []string{w.cfg.CoresArg, strconv.Itoa(j.Cores)},
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConnectivity) {
			w.breaker.RecordFailure()
		}
		return job.Failed(j.ID, w.ID(), err, 0)
	}
	w.breaker.RecordSuccess()

	exitCode, err := w.await(ctx, proc)
	if err != nil {
		if errors.Is(err, apperrors.ErrTimeout) {
			err = apperrors.Timeout("remote.poll", time.Since(start).Round(time.Second))
		}
		return job.Failed(j.ID, w.ID(), err, 0)
	}
	if exitCode != 0 {
		return job.Failed(j.ID, w.ID(), apperrors.Process("remote.run", exitCode), 0)
	}

	artifact, err := staging.VerifyArtifact(stage, j.Artifact)
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

// await polls the remote process until it exits or the deadline passes. On
// expiry the process is killed so no orphan keeps running on the host.
func (w *Worker) await(ctx context.Context, proc Process) (int, error) {
	for attempt := 1; ; attempt++ {
		done, exitCode, err := proc.Poll(ctx)
		if err != nil {
			return -1, err
		}
		if done {
			return exitCode, nil
		}

		select {
		case <-ctx.Done():
			if err := proc.Kill(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("Failed to kill remote process after deadline", "error", err)
			}
			return -1, apperrors.ErrTimeout
		case <-time.After(w.poll.Next(attempt)):
		}
	}
}

// Verify Worker implements worker.Worker
var _ worker.Worker = (*Worker)(nil)
