package factory

import (
	"errors"
	"testing"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/staging"
	"simdispatch/internal/worker"
	"simdispatch/internal/worker/dockerw"
	"simdispatch/internal/worker/local"
	"simdispatch/internal/worker/remote"
)

func TestNewBuildsEachBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Spec
		kind worker.Kind
	}{
		{
			name: "local",
			spec: Spec{
				Kind:    worker.KindLocal,
				Options: worker.Options{Capacity: 8, CostPerJob: 2},
				Local:   &local.Config{Engine: "/opt/solver/bin/solve"},
			},
			kind: worker.KindLocal,
		},
		{
			name: "remote session",
			spec: Spec{
				Kind:    worker.KindRemoteSession,
				Options: worker.Options{Capacity: 16, CostPerJob: 4},
				Remote: &remote.Config{
					Host:      "simhost01",
					SessionID: 2,
					Engine:    `C:\engine\solver.exe`,
					Share:     staging.PathMap{LocalRoot: "/mnt/simshare", RemoteRoot: `D:\simshare`, RemoteSep: `\`},
					Launcher:  "/usr/local/bin/session-launch",
				},
			},
			kind: worker.KindRemoteSession,
		},
		{
			name: "container",
			spec: Spec{
				Kind:      worker.KindContainer,
				Options:   worker.Options{Capacity: 8, CostPerJob: 4},
				Container: &dockerw.Config{Image: "solver:2024.1", Engine: "/opt/solver/bin/solve"},
			},
			kind: worker.KindContainer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := New(tt.spec)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if w.Kind() != tt.kind {
				t.Errorf("Kind() = %q, want %q", w.Kind(), tt.kind)
			}
			if w.ID() == "" {
				t.Error("worker should receive a generated ID")
			}
		})
	}
}

func TestNewRejectsMismatchedSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown kind", Spec{Kind: "mainframe", Options: worker.Options{Capacity: 4, CostPerJob: 4}}},
		{"local without block", Spec{Kind: worker.KindLocal, Options: worker.Options{Capacity: 4, CostPerJob: 4}}},
		{"remote without block", Spec{Kind: worker.KindRemoteSession, Options: worker.Options{Capacity: 4, CostPerJob: 4}}},
		{"container without block", Spec{Kind: worker.KindContainer, Options: worker.Options{Capacity: 4, CostPerJob: 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.spec); err == nil || !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("want config error, got %v", err)
			}
		})
	}
}

func TestNewPoolStopsAtFirstInvalidSpec(t *testing.T) {
	t.Parallel()

	specs := []Spec{
		{Kind: worker.KindLocal, Options: worker.Options{Capacity: 4, CostPerJob: 2}, Local: &local.Config{Engine: "solve"}},
		{Kind: "mainframe"},
	}
	if _, err := NewPool(specs); err == nil || !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("want config error for second spec, got %v", err)
	}
}
