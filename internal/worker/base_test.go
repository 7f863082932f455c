package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/job"
)

type dummyExec struct{}

func (dummyExec) Ready(context.Context) error               { return nil }
func (dummyExec) Execute(context.Context, job.Job) job.Outcome { return job.Outcome{} }

func TestNewBaseValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"valid", Options{Capacity: 8, CostPerJob: 4}, ""},
		{"zero capacity", Options{CostPerJob: 4}, "capacity"},
		{"zero cost", Options{Capacity: 8}, "costPerJob"},
		{"cost exceeds capacity", Options{Capacity: 2, CostPerJob: 4}, "could never run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := NewBase(KindLocal, tt.opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if b.Capacity() != tt.opts.Capacity || b.CostPerJob() != tt.opts.CostPerJob {
					t.Error("base did not carry capacity/cost through")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("Expected config error, got %v", err)
			}
		})
	}
}

func TestNewBaseGeneratesID(t *testing.T) {
	t.Parallel()

	a, err := NewBase(KindLocal, Options{Capacity: 4, CostPerJob: 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBase(KindLocal, Options{Capacity: 4, CostPerJob: 2})
	if err != nil {
		t.Fatal(err)
	}

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("generated IDs must be unique and non-empty, got %q and %q", a.ID(), b.ID())
	}
	if !strings.HasPrefix(a.ID(), string(KindLocal)) {
		t.Errorf("generated ID %q should carry the backend kind", a.ID())
	}

	c, err := NewBase(KindContainer, Options{ID: "gpu-box", Capacity: 4, CostPerJob: 2})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "gpu-box" {
		t.Errorf("explicit ID not preserved: got %q", c.ID())
	}
}

func TestAutocleanDefault(t *testing.T) {
	t.Parallel()

	b, _ := NewBase(KindLocal, Options{Capacity: 4, CostPerJob: 2})
	if !b.Autoclean() {
		t.Error("autoclean should default to true")
	}

	off := false
	b, _ = NewBase(KindLocal, Options{Capacity: 4, CostPerJob: 2, Autoclean: &off})
	if b.Autoclean() {
		t.Error("autoclean=false not honored")
	}
}

func TestMaxConcurrent(t *testing.T) {
	t.Parallel()

	b, _ := NewBase(KindLocal, Options{Capacity: 9, CostPerJob: 4})
	w := struct {
		Base
		dummyExec
	}{Base: b}

	if got := MaxConcurrent(w); got != 2 {
		t.Errorf("MaxConcurrent = %d, want 2 (integer division)", got)
	}
}
