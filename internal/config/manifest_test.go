package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/worker"
)

const sampleManifest = `
defaultTimeout: 2h
callback:
  url: https://hooks.example.com/runs
  key: secret
  events:
    - simdispatch.job.exit
    - simdispatch.run.complete
workers:
  - kind: local
    capacity: 8
    costPerJob: 2
    local:
      engine: /opt/solver/bin/solve
  - kind: remote-session
    capacity: 16
    costPerJob: 4
    priority: 10
    remote:
      host: simhost01
      sessionId: 2
      engine: C:\engine\solver.exe
      launcher: /usr/local/bin/session-launch
      share:
        localRoot: /mnt/simshare
        remoteRoot: D:\simshare
        remoteSep: '\'
jobs:
  - id: "1043"
    cores: 2
    inputDir: /data/plans/1043
    artifact: results.out
  - id: "1044"
    cores: 4
    inputDir: /data/plans/1044
    artifact: results.out
    timeout: 30m
`

func TestParseManifest(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}

	if m.DefaultTimeout != 2*time.Hour {
		t.Errorf("DefaultTimeout = %v, want 2h", m.DefaultTimeout)
	}
	if m.Callback == nil || m.Callback.URL != "https://hooks.example.com/runs" {
		t.Errorf("Callback = %+v", m.Callback)
	}
	if len(m.Workers) != 2 {
		t.Fatalf("got %d workers, want 2", len(m.Workers))
	}
	if m.Workers[1].Kind != worker.KindRemoteSession {
		t.Errorf("worker 1 kind = %q", m.Workers[1].Kind)
	}
	if m.Workers[1].Remote == nil || m.Workers[1].Remote.SessionID != 2 {
		t.Errorf("remote config = %+v", m.Workers[1].Remote)
	}
	if m.Workers[1].Options.Priority != 10 {
		t.Errorf("worker 1 priority = %d, want 10", m.Workers[1].Options.Priority)
	}
	if len(m.Jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(m.Jobs))
	}
	if m.Jobs[1].Timeout != 30*time.Minute {
		t.Errorf("job 1 timeout = %v, want 30m", m.Jobs[1].Timeout)
	}
}

func TestParseManifestRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "{{nope"},
		{"no workers", "jobs:\n  - id: a\n    cores: 1\n    inputDir: /d\n    artifact: out\n"},
		{"no jobs", "workers:\n  - kind: local\n    capacity: 4\n    costPerJob: 2\n"},
		{"invalid job", "workers:\n  - kind: local\n    capacity: 4\n    costPerJob: 2\njobs:\n  - id: \"bad id!\"\n    cores: 1\n    inputDir: /d\n    artifact: out\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseManifest([]byte(tt.yaml)); err == nil || !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("want config error, got %v", err)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if len(m.Jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(m.Jobs))
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, apperrors.ErrConfig) {
		t.Errorf("missing file should be a config error, got %v", err)
	}
}
