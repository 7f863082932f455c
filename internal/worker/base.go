package worker

import (
	"fmt"

	"github.com/google/uuid"

	"simdispatch/internal/apperrors"
)

// Options holds the backend-independent part of a worker's configuration.
type Options struct {
	ID         string `yaml:"id"`         // auto-generated when empty
	Capacity   int    `yaml:"capacity"`   // total compute units
	CostPerJob int    `yaml:"costPerJob"` // units per job
	Priority   int    `yaml:"priority"`   // lower scheduled first
	Autoclean  *bool  `yaml:"autoclean"`  // default true; false keeps staging dirs for debugging
}

// Base carries the common identity and capacity state every backend embeds.
type Base struct {
	id        string
	kind      Kind
	capacity  int
	cost      int
	priority  int
	autoclean bool
}

// NewBase validates the common options and builds the embedded base.
// A worker whose capacity computes to zero concurrent jobs is a
// configuration error, not a worker that silently never schedules.
func NewBase(kind Kind, opts Options) (Base, error) {
	if opts.Capacity <= 0 {
		return Base{}, apperrors.Config("worker.capacity", "must be a positive integer")
	}
	if opts.CostPerJob <= 0 {
		return Base{}, apperrors.Config("worker.costPerJob", "must be a positive integer")
	}
	if opts.Capacity/opts.CostPerJob < 1 {
		return Base{}, apperrors.Config("worker.costPerJob",
			fmt.Sprintf("cost %d exceeds capacity %d, worker could never run a job", opts.CostPerJob, opts.Capacity))
	}

	id := opts.ID
	if id == "" {
		id = fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
	}

	autoclean := true
	if opts.Autoclean != nil {
		autoclean = *opts.Autoclean
	}

	return Base{
		id:        id,
		kind:      kind,
		capacity:  opts.Capacity,
		cost:      opts.CostPerJob,
		priority:  opts.Priority,
		autoclean: autoclean,
	}, nil
}

func (b Base) ID() string      { return b.id }
func (b Base) Kind() Kind      { return b.kind }
func (b Base) Capacity() int   { return b.capacity }
func (b Base) CostPerJob() int { return b.cost }
func (b Base) Priority() int   { return b.priority }

// Autoclean reports whether staging directories are removed after execution.
func (b Base) Autoclean() bool { return b.autoclean }
