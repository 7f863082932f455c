// Package worker defines the execution endpoint contract shared by all
// backends.
//
// A Worker is a capability-bearing endpoint: it declares how much compute it
// hosts, what one job costs, and executes jobs handed to it by the
// coordinator. Implementations live in the sibling packages local, remote,
// and dockerw; each owns a strongly typed configuration struct validated at
// construction time, never at call time.
package worker

import (
	"context"

	"simdispatch/internal/job"
)

// Kind identifies the execution backend behind a worker.
type Kind string

const (
	KindLocal         Kind = "local"
	KindRemoteSession Kind = "remote-session"
	KindContainer     Kind = "container"
)

// Worker is an execution endpoint.
//
// Execute is a blocking call, safe to run from an independent goroutine. It
// must never panic or return a Go error for expected failure modes such as
// an unreachable backend or a non-zero engine exit; those become a failed
// Outcome with the matching category, so the coordinator's fan-out loop
// needs no per-worker error handling.
//
// The context carries the job's wall-clock budget as a deadline; on expiry
// the implementation terminates the underlying process or container, cleans
// up staging, and reports a timeout outcome.
type Worker interface {
	ID() string
	Kind() Kind

	// Capacity is the total compute units this endpoint hosts.
	Capacity() int

	// CostPerJob is the units one job consumes. The coordinator derives
	// max_concurrent = Capacity / CostPerJob (integer division).
	CostPerJob() int

	// Priority orders workers during assignment; lower is served first.
	// An ordering hint only, never a correctness concern.
	Priority() int

	// Ready probes backend reachability. Used by the preflight pass.
	Ready(ctx context.Context) error

	Execute(ctx context.Context, j job.Job) job.Outcome
}

// MaxConcurrent returns the number of jobs a worker can host at once.
func MaxConcurrent(w Worker) int {
	return w.Capacity() / w.CostPerJob()
}
