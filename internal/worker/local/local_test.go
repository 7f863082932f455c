package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/job"
	"simdispatch/internal/worker"
)

// writeEngine creates a fake engine script in dir and returns its path.
func writeEngine(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.sh")
	content := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestWorker(t *testing.T, engine string) *Worker {
	t.Helper()
	w, err := New(
		worker.Options{ID: "local-test", Capacity: 4, CostPerJob: 2},
		Config{Engine: engine, WorkRoot: t.TempDir()},
	)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func newTestJob(t *testing.T) job.Job {
	t.Helper()
	return job.Job{ID: "1043", Cores: 2, InputDir: t.TempDir(), Artifact: "results.out"}
}

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()

	engine := writeEngine(t, `echo "$@" > results.out`)
	w := newTestWorker(t, engine)
	j := newTestJob(t)

	out := w.Execute(context.Background(), j)
	if !out.Success {
		t.Fatalf("Execute() failed: %s (%s)", out.Err, out.Category)
	}

	// Artifact must be copied back beside the inputs.
	want := filepath.Join(j.InputDir, "results.out")
	if out.ArtifactPath != want {
		t.Errorf("ArtifactPath = %q, want %q", out.ArtifactPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("artifact not copied back: %v", err)
	}
	if !strings.Contains(string(data), "-cores 2") {
		t.Errorf("engine did not receive the core count, argv was %q", data)
	}
}

func TestExecuteSilentFailure(t *testing.T) {
	t.Parallel()

	// Exits 0 but writes nothing: the canonical session-identity failure shape.
	engine := writeEngine(t, "exit 0")
	w := newTestWorker(t, engine)

	out := w.Execute(context.Background(), newTestJob(t))
	if out.Success {
		t.Fatal("zero exit without artifact must not be success")
	}
	if out.Category != apperrors.CategorySilentFailure {
		t.Errorf("Category = %q, want silent-failure", out.Category)
	}
}

func TestExecuteProcessFailure(t *testing.T) {
	t.Parallel()

	engine := writeEngine(t, "exit 3")
	w := newTestWorker(t, engine)

	out := w.Execute(context.Background(), newTestJob(t))
	if out.Success {
		t.Fatal("non-zero exit must not be success")
	}
	if out.Category != apperrors.CategoryProcess {
		t.Errorf("Category = %q, want process", out.Category)
	}
	if !strings.Contains(out.Err, "status 3") {
		t.Errorf("error should carry the exit status, got %q", out.Err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	t.Parallel()

	engine := writeEngine(t, "sleep 30")
	w := newTestWorker(t, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := w.Execute(ctx, newTestJob(t))
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Execute() did not return promptly after deadline, took %v", elapsed)
	}
	if out.Category != apperrors.CategoryTimeout {
		t.Errorf("Category = %q, want timeout", out.Category)
	}
}

func TestExecuteIsolatesConcurrentJobs(t *testing.T) {
	t.Parallel()

	// Each invocation records its working directory into the artifact.
	engine := writeEngine(t, `pwd > results.out`)
	w := newTestWorker(t, engine)

	j1 := job.Job{ID: "a1", Cores: 1, InputDir: t.TempDir(), Artifact: "results.out"}
	j2 := job.Job{ID: "a2", Cores: 1, InputDir: t.TempDir(), Artifact: "results.out"}

	o1 := w.Execute(context.Background(), j1)
	o2 := w.Execute(context.Background(), j2)
	if !o1.Success || !o2.Success {
		t.Fatalf("executions failed: %q %q", o1.Err, o2.Err)
	}

	wd1, _ := os.ReadFile(o1.ArtifactPath)
	wd2, _ := os.ReadFile(o2.ArtifactPath)
	if string(wd1) == string(wd2) {
		t.Errorf("concurrent jobs shared a working directory: %s", wd1)
	}
}

func TestAutocleanOffKeepsScratch(t *testing.T) {
	t.Parallel()

	engine := writeEngine(t, "exit 4")
	off := false
	w, err := New(
		worker.Options{Capacity: 2, CostPerJob: 1, Autoclean: &off},
		Config{Engine: engine, WorkRoot: t.TempDir()},
	)
	if err != nil {
		t.Fatal(err)
	}

	out := w.Execute(context.Background(), newTestJob(t))
	if out.StagingDir == "" {
		t.Fatal("autoclean=false should report the staging dir")
	}
	if _, err := os.Stat(out.StagingDir); err != nil {
		t.Errorf("staging dir should survive for debugging: %v", err)
	}
}

func TestNewRequiresEngine(t *testing.T) {
	t.Parallel()

	_, err := New(worker.Options{Capacity: 2, CostPerJob: 1}, Config{})
	if err == nil || apperrors.CategoryOf(err) != apperrors.CategoryConfig {
		t.Errorf("missing engine should be a config error, got %v", err)
	}
}

func TestReadyMissingEngine(t *testing.T) {
	t.Parallel()

	w := newTestWorker(t, "/nonexistent/engine-binary")
	if err := w.Ready(context.Background()); err == nil {
		t.Error("Ready() should fail for a missing engine binary")
	}
}
