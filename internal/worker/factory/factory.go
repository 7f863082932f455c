// Package factory builds workers from declarative specs, typically decoded
// from a run manifest.
package factory

import (
	"fmt"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/worker"
	"simdispatch/internal/worker/dockerw"
	"simdispatch/internal/worker/local"
	"simdispatch/internal/worker/remote"
)

// Spec declares one worker: which backend, the capacity options shared by all
// backends, and exactly one backend-specific config block.
type Spec struct {
	Kind    worker.Kind    `yaml:"kind"`
	Options worker.Options `yaml:",inline"`

	Local     *local.Config   `yaml:"local,omitempty"`
	Remote    *remote.Config  `yaml:"remote,omitempty"`
	Container *dockerw.Config `yaml:"container,omitempty"`
}

// New constructs the worker a spec describes.
func New(spec Spec) (worker.Worker, error) {
	switch spec.Kind {
	case worker.KindLocal:
		if spec.Local == nil {
			return nil, apperrors.Config("worker.local", "local backend requires a local config block")
		}
		return local.New(spec.Options, *spec.Local)

	case worker.KindRemoteSession:
		if spec.Remote == nil {
			return nil, apperrors.Config("worker.remote", "remote-session backend requires a remote config block")
		}
		return remote.New(spec.Options, *spec.Remote)

	case worker.KindContainer:
		if spec.Container == nil {
			return nil, apperrors.Config("worker.container", "container backend requires a container config block")
		}
		return dockerw.New(spec.Options, *spec.Container)

	default:
		return nil, apperrors.Config("worker.kind", fmt.Sprintf("unknown backend kind %q", spec.Kind))
	}
}

// NewPool constructs all workers from a list of specs, failing on the first
// invalid one.
func NewPool(specs []Spec) ([]worker.Worker, error) {
	pool := make([]worker.Worker, 0, len(specs))
	for i, spec := range specs {
		w, err := New(spec)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		pool = append(pool, w)
	}
	return pool, nil
}
