package remote

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"simdispatch/internal/apperrors"
)

// LaunchSpec describes one engine invocation on a remote host. The session ID
// names the interactive logon session the process must attach to; it is
// always configured explicitly, never defaulted.
type LaunchSpec struct {
	Host      string
	SessionID int
	WorkDir   string // working directory as the remote host sees it
	Command   string
	Args      []string
}

// Process is a handle on a launched remote process.
type Process interface {
	// Poll reports whether the process has finished and, if so, its exit code.
	// Non-blocking.
	Poll(ctx context.Context) (done bool, exitCode int, err error)

	// Kill forcibly terminates the process.
	Kill(ctx context.Context) error
}

// Launcher starts processes on a remote host inside a specific interactive
// session. The default implementation shells out to a configured launch
// utility; tests substitute fakes.
type Launcher interface {
	// Ping verifies the host is reachable and the credentials are accepted.
	Ping(ctx context.Context, host string) error

	Start(ctx context.Context, spec LaunchSpec) (Process, error)
}

// toolLauncher drives an external session-launch utility. The utility runs on
// the coordinator, connects to the remote host, starts the command bound to
// the given session, and stays alive until the remote process exits,
// mirroring its exit code.
type toolLauncher struct {
	tool string
}

func newToolLauncher(tool string) *toolLauncher {
	return &toolLauncher{tool: tool}
}

func (l *toolLauncher) Ping(ctx context.Context, host string) error {
	cmd := exec.CommandContext(ctx, l.tool, "-host", host, "-ping")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return classifyLaunchError("remote.ping", err, string(out))
	}
	return nil
}

func (l *toolLauncher) Start(ctx context.Context, spec LaunchSpec) (Process, error) {
	args := []string{
		"-host", spec.Host,
		"-session", strconv.Itoa(spec.SessionID),
		"-wd", spec.WorkDir,
		"--", spec.Command,
	}
	args = append(args, spec.Args...)

	cmd := exec.CommandContext(ctx, l.tool, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return nil, apperrors.Internal("remote.launch", err)
	}

	p := &toolProcess{cmd: cmd, output: &output, waitErr: make(chan error, 1)}
	go func() { p.waitErr <- cmd.Wait() }()
	return p, nil
}

type toolProcess struct {
	cmd     *exec.Cmd
	output  *bytes.Buffer
	waitErr chan error

	mu       sync.Mutex
	finished bool
	exitCode int
	err      error
}

func (p *toolProcess) Poll(ctx context.Context) (bool, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return true, p.exitCode, p.err
	}

	select {
	case err := <-p.waitErr:
		p.finished = true
		if err == nil {
			return true, 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.exitCode = exitErr.ExitCode()
			return true, p.exitCode, nil
		}
		p.exitCode = -1
		p.err = classifyLaunchError("remote.launch", err, p.output.String())
		return true, -1, p.err
	default:
		return false, 0, nil
	}
}

func (p *toolProcess) Kill(ctx context.Context) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// classifyLaunchError maps launch-utility failures onto the error taxonomy by
// inspecting its output. Authentication rejections and unreachable hosts are
// distinguishable failure classes, never a generic failure.
func classifyLaunchError(op string, err error, output string) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "access denied"),
		strings.Contains(lower, "access is denied"),
		strings.Contains(lower, "logon failure"),
		strings.Contains(lower, "authentication"):
		return apperrors.Permission(op, errors.New(strings.TrimSpace(output)))
	case strings.Contains(lower, "unreachable"),
		strings.Contains(lower, "could not connect"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "timed out"):
		return apperrors.Connectivity(op, errors.New(strings.TrimSpace(output)))
	default:
		return apperrors.Connectivity(op, err)
	}
}
