// Package dockerw runs jobs inside containers via the Docker API, against the
// local daemon or a remote one reached over TCP. Inputs are staged into a
// directory the daemon can bind-mount, and the artifact is verified on the
// staged copy after the container exits.
package dockerw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/job"
	"simdispatch/internal/staging"
	"simdispatch/internal/worker"
)

// API is the slice of the Docker client the worker uses. *client.Client
// satisfies it; tests substitute fakes.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// PrepareConfig describes an optional host-side preparation step that runs
// before the container. Some engines ship a companion tool that compiles the
// input deck into an intermediate form; the solve phase consumes its output.
type PrepareConfig struct {
	Command  string   `yaml:"command"`  // preparation tool on the coordinator host
	Args     []string `yaml:"args"`     // extra arguments, run with the staged dir as cwd
	Artifact string   `yaml:"artifact"` // intermediate file the step must produce, if any
}

// Config holds the container backend's configuration.
type Config struct {
	Host      string          `yaml:"host"`      // daemon address (empty: environment / local socket)
	Image     string          `yaml:"image"`     // engine image reference
	Engine    string          `yaml:"engine"`    // engine command inside the container
	CoresArg  string          `yaml:"coresArg"`  // flag carrying the core count (default: -cores)
	Workspace string          `yaml:"workspace"` // mount point inside the container (default: /workspace)
	MemoryMB  int64           `yaml:"memoryMb"`  // container memory limit, 0 for unlimited
	WorkRoot  string          `yaml:"workRoot"`  // staging root; must be bind-mountable by the daemon
	Mount     staging.PathMap `yaml:"mount"`     // coordinator-visible vs daemon-visible staging root
	Prepare   *PrepareConfig  `yaml:"prepare"`   // optional host-side preparation step

	// Client overrides the default Docker client. Tests inject here.
	Client API `yaml:"-"`
}

// Worker executes jobs in containers.
type Worker struct {
	worker.Base
	cfg    Config
	client API
	logger *slog.Logger
}

// New validates the configuration, connects the Docker client, and creates a
// container worker.
func New(opts worker.Options, cfg Config) (*Worker, error) {
	base, err := worker.NewBase(worker.KindContainer, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Image == "" {
		return nil, apperrors.Config("container.image", "engine image is required")
	}
	if cfg.Engine == "" {
		return nil, apperrors.Config("container.engine", "engine command inside the container is required")
	}
	if cfg.Prepare != nil && cfg.Prepare.Command == "" {
		return nil, apperrors.Config("container.prepare.command", "preparation command is required when a prepare step is configured")
	}
	if cfg.CoresArg == "" {
		cfg.CoresArg = "-cores"
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "/workspace"
	}
	if cfg.WorkRoot == "" {
		if cfg.Mount.LocalRoot != "" {
			cfg.WorkRoot = cfg.Mount.LocalRoot
		} else {
			cfg.WorkRoot = os.TempDir()
		}
	}
	if cfg.Mount.LocalRoot != "" || cfg.Mount.RemoteRoot != "" {
		if err := cfg.Mount.Validate(); err != nil {
			return nil, err
		}
		// Staged dirs must sit under the mapped root or Rebase fails on
		// every job.
		if _, err := cfg.Mount.Rebase(cfg.WorkRoot); err != nil {
			return nil, err
		}
	}

	api := cfg.Client
	if api == nil {
		clientOpts := []client.Opt{client.WithAPIVersionNegotiation()}
		if cfg.Host != "" {
			clientOpts = append(clientOpts, client.WithHost(cfg.Host))
		} else {
			clientOpts = append(clientOpts, client.FromEnv)
		}
		dockerClient, err := client.NewClientWithOpts(clientOpts...)
		if err != nil {
			return nil, apperrors.Connectivity("container.connect", err)
		}
		api = dockerClient
	}

	return &Worker{
		Base:   base,
		cfg:    cfg,
		client: api,
		logger: slog.With("workerId", base.ID(), "backend", worker.KindContainer, "image", cfg.Image),
	}, nil
}

// Ready pings the Docker daemon.
func (w *Worker) Ready(ctx context.Context) error {
	if _, err := w.client.Ping(ctx); err != nil {
		return apperrors.Connectivity("container.ping", err)
	}
	return nil
}

// Close releases the Docker client.
func (w *Worker) Close() error {
	return w.client.Close()
}

// Execute stages inputs, runs the optional preparation step on the host, then
// runs the engine container against the staged directory and verifies the
// artifact. If preparation fails the container is never created.
func (w *Worker) Execute(ctx context.Context, j job.Job) job.Outcome {
	start := time.Now()
	logger := w.logger.With("jobId", j.ID)

	stage, err := staging.ScopedDir(w.cfg.WorkRoot, j.ID)
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

	if w.cfg.Prepare != nil {
		if err := w.prepare(ctx, logger, stage, start); err != nil {
			return job.Failed(j.ID, w.ID(), err, 0)
		}
	}

	exitCode, err := w.runContainer(ctx, logger, j, stage, start)
	if err != nil {
		return job.Failed(j.ID, w.ID(), err, 0)
	}
	if exitCode != 0 {
		return job.Failed(j.ID, w.ID(), apperrors.Process("container.run", exitCode), 0)
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

// prepare runs the host-side preparation tool with the staged directory as
// its working directory and, when configured, verifies its intermediate
// artifact before the container phase may begin.
func (w *Worker) prepare(ctx context.Context, logger *slog.Logger, stage string, start time.Time) error {
	p := w.cfg.Prepare
	logger.Info("Running preparation step", "command", p.Command)

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = stage
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return apperrors.Timeout("container.prepare", time.Since(start).Round(time.Second))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error("Preparation step failed", "exitCode", exitErr.ExitCode(), "stderr", strings.TrimSpace(stderr.String()))
			return apperrors.Process("container.prepare", exitErr.ExitCode())
		}
		return apperrors.Internal("container.prepare", err)
	}

	if p.Artifact != "" {
		if _, err := staging.VerifyArtifact(stage, p.Artifact); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) runContainer(ctx context.Context, logger *slog.Logger, j job.Job, stage string, start time.Time) (int, error) {
	// Detached context so a near-expired deadline does not abort a pull that
	// would succeed and be reused by later jobs.
	if err := w.pullImageIfNeeded(context.WithoutCancel(ctx)); err != nil {
		return -1, apperrors.Connectivity("container.pullImage", err)
	}

	bindSource := stage
	if w.cfg.Mount.RemoteRoot != "" {
		rebased, err := w.cfg.Mount.Rebase(stage)
		if err != nil {
			return -1, err
		}
		bindSource = rebased
	}

	containerConfig := &container.Config{
		Image:      w.cfg.Image,
		Cmd:        []string{w.cfg.Engine, w.cfg.CoresArg, strconv.Itoa(j.Cores)},
		WorkingDir: w.cfg.Workspace,
		Labels: map[string]string{
			"job.id":     j.ID,
			"managed-by": "simdispatch",
		},
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: bindSource,
				Target: w.cfg.Workspace,
			},
		},
		Resources: container.Resources{
			NanoCPUs: int64(j.Cores) * 1e9,
			Memory:   w.cfg.MemoryMB * 1024 * 1024,
		},
	}

	containerName := fmt.Sprintf("sim-%s-%s", j.ID, w.ID())
	resp, err := w.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return -1, apperrors.Internal("container.create", err)
	}
	defer w.removeContainer(context.WithoutCancel(ctx), logger, resp.ID)

	if err := w.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return -1, apperrors.Internal("container.start", err)
	}
	logger.Info("Engine container started", "containerId", resp.ID)

	return w.waitForExit(ctx, resp.ID, start)
}

// waitForExit blocks until the container exits or the deadline passes. On
// expiry the container is stopped so no orphan keeps burning cores.
func (w *Worker) waitForExit(ctx context.Context, containerID string, start time.Time) (int, error) {
	statusCh, errCh := w.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		stopTimeout := 10
		stopCtx := context.WithoutCancel(ctx)
		if err := w.client.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &stopTimeout}); err != nil {
			w.logger.Warn("Failed to stop container after deadline", "containerId", containerID, "error", err)
		}
		return -1, apperrors.Timeout("container.wait", time.Since(start).Round(time.Second))
	case err := <-errCh:
		return -1, apperrors.Connectivity("container.wait", err)
	case status := <-statusCh:
		if status.Error != nil {
			return -1, apperrors.Internal("container.wait", fmt.Errorf("%s", status.Error.Message))
		}
		return int(status.StatusCode), nil
	}
}

func (w *Worker) pullImageIfNeeded(ctx context.Context) error {
	if _, err := w.client.ImageInspect(ctx, w.cfg.Image); err == nil {
		return nil
	}

	w.logger.Info("Pulling engine image")
	reader, err := w.client.ImagePull(ctx, w.cfg.Image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (w *Worker) removeContainer(ctx context.Context, logger *slog.Logger, containerID string) {
	if err := w.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		logger.Warn("Failed to remove container", "containerId", containerID, "error", err)
	}
}

// Verify Worker implements worker.Worker
var _ worker.Worker = (*Worker)(nil)
