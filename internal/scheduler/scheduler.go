// Package scheduler coordinates one run: capacity-aware, priority-ordered
// assignment of jobs to workers, timeout supervision, and outcome aggregation
// into the result ledger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/dispatcher"
	"simdispatch/internal/job"
	"simdispatch/internal/observability"
	"simdispatch/internal/worker"
	"simdispatch/pkg/webhook"
)

// Config holds run-wide coordinator settings.
type Config struct {
	DefaultTimeout time.Duration          // per-job budget unless the job overrides it (default: 8h)
	Grace          time.Duration          // extra wait for a worker to honor an expired deadline (default: 30s)
	RunID          string                 // run identifier for events, generated when empty
	Metrics        *observability.Metrics // metrics recorder (optional)
	Dispatcher     dispatcher.Dispatcher  // callback dispatcher (optional)
	Callback       *job.Callback          // webhook destination for run events (optional)
}

// Coordinator assigns jobs to a fixed worker pool and supervises their
// execution. One Coordinator runs one job set at a time.
type Coordinator struct {
	pool   []worker.Worker // sorted by priority, ties keep construction order
	cfg    Config
	state  *poolState
	logger *slog.Logger

	running atomic.Bool
}

// completion carries one finished job back to the scheduling loop.
type completion struct {
	outcome job.Outcome
	worker  worker.Worker
	cores   int
}

// New validates the pool and creates a coordinator.
func New(pool []worker.Worker, cfg Config) (*Coordinator, error) {
	if len(pool) == 0 {
		return nil, apperrors.Config("pool", "at least one worker is required")
	}

	seen := make(map[string]bool, len(pool))
	for _, w := range pool {
		if seen[w.ID()] {
			return nil, apperrors.Config("pool", fmt.Sprintf("duplicate worker ID %q", w.ID()))
		}
		seen[w.ID()] = true
	}

	sorted := make([]worker.Worker, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, k int) bool {
		return sorted[i].Priority() < sorted[k].Priority()
	})

	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 8 * time.Hour
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 30 * time.Second
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	return &Coordinator{
		pool:   sorted,
		cfg:    cfg,
		state:  newPoolState(sorted),
		logger: slog.With("component", "scheduler", "runId", cfg.RunID),
	}, nil
}

// Preflight probes every worker's backend and returns the failures keyed by
// worker ID. An unready worker is reported, not excluded; transient
// connectivity may recover before its first job.
func (c *Coordinator) Preflight(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, w := range c.pool {
		if err := w.Ready(ctx); err != nil {
			c.logger.Warn("Worker not ready", "workerId", w.ID(), "backend", w.Kind(), "error", err)
			failures[w.ID()] = err
		}
	}
	return failures
}

// Run executes all jobs and returns the ledger with exactly one outcome per
// job. Individual failures never abort the run; only invalid input does.
func (c *Coordinator) Run(ctx context.Context, jobs []job.Job) (job.Ledger, error) {
	if c.running.Swap(true) {
		return nil, fmt.Errorf("coordinator is already running a job set")
	}
	defer c.running.Store(false)

	if err := validateJobs(jobs); err != nil {
		return nil, err
	}

	builder := job.NewEventBuilder(c.cfg.RunID)
	c.emit(builder.BuildRunStart(len(jobs), len(c.pool)))
	c.logger.Info("Run started", "jobs", len(jobs), "workers", len(c.pool))

	ledger := make(job.Ledger, len(jobs))
	completions := make(chan completion)
	next := 0
	inFlight := 0
	cancelled := false

	dispatch := func() {
		for next < len(jobs) {
			w := c.freeWorker()
			if w == nil {
				return
			}
			j := jobs[next]
			next++
			inFlight++

			c.logger.Info("Job dispatched",
				"jobId", j.ID,
				"workerId", w.ID(),
				"backend", w.Kind(),
				"workerLoad", c.state.active(w.ID()),
				"inFlight", c.state.totalActive(),
			)
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordJobDispatched(ctx, w.Kind(), w.ID(), j.Cores)
			}
			c.emit(builder.BuildJobStart(j.ID, w.ID()))

			go func(w worker.Worker, j job.Job) {
				completions <- completion{
					outcome: c.execute(ctx, w, j),
					worker:  w,
					cores:   j.Cores,
				}
			}(w, j)
		}
	}

	dispatch()
	ctxDone := ctx.Done()
	for inFlight > 0 || (next < len(jobs) && !cancelled) {
		select {
		case <-ctxDone:
			ctxDone = nil
			cancelled = true
			for _, j := range jobs[next:] {
				ledger[j.ID] = job.Failed(j.ID, "", apperrors.Internal("scheduler.run", ctx.Err()), 0)
			}
			next = len(jobs)

		case done := <-completions:
			inFlight--
			c.state.release(done.worker.ID())
			ledger[done.outcome.JobID] = done.outcome

			logger := c.logger.With("jobId", done.outcome.JobID, "workerId", done.worker.ID())
			if done.outcome.Success {
				logger.Info("Job completed", "duration", done.outcome.Duration)
			} else {
				logger.Warn("Job failed", "category", done.outcome.Category, "error", done.outcome.Err)
			}

			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordJobCompleted(ctx, done.worker.Kind(), done.worker.ID(),
					done.outcome.Category, done.outcome.Success, done.outcome.Duration.Seconds(), done.cores)
			}
			c.emit(builder.BuildJobExit(done.outcome))

			if !cancelled {
				dispatch()
			}
		}
	}

	c.emit(builder.BuildRunComplete(ledger))
	c.logger.Info("Run complete",
		"jobs", len(ledger),
		"succeeded", ledger.Succeeded(),
		"failed", len(ledger.Failures()),
		"silentFailures", len(ledger.SilentFailures()),
	)
	return ledger, nil
}

// freeWorker returns the highest-priority worker with a free slot, reserving
// the slot, or nil when the pool is saturated.
func (c *Coordinator) freeWorker() worker.Worker {
	for _, w := range c.pool {
		if c.state.reserve(w.ID()) {
			return w
		}
	}
	return nil
}

// execute runs one job under its deadline. A worker that ignores the expired
// deadline past the grace period gets a synthesized timeout outcome so the
// slot is freed; the stuck goroutine is abandoned.
func (c *Coordinator) execute(ctx context.Context, w worker.Worker, j job.Job) job.Outcome {
	budget := j.Timeout
	if budget <= 0 {
		budget = c.cfg.DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan job.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- job.Failed(j.ID, w.ID(),
					apperrors.Internal("scheduler.execute", fmt.Errorf("worker panic: %v", r)), 0)
			}
		}()
		done <- w.Execute(execCtx, j)
	}()

	timer := time.NewTimer(budget + c.cfg.Grace)
	defer timer.Stop()

	select {
	case out := <-done:
		return out
	case <-timer.C:
		c.logger.Error("Worker unresponsive past grace period", "jobId", j.ID, "workerId", w.ID())
		return job.Failed(j.ID, w.ID(), apperrors.Timeout("scheduler.grace", budget), budget+c.cfg.Grace)
	}
}

// emit dispatches a run event to the configured callback, if any.
func (c *Coordinator) emit(ev *webhook.Event) {
	if c.cfg.Dispatcher == nil || c.cfg.Callback == nil || c.cfg.Callback.URL == "" {
		return
	}
	if !job.FilteredEvents(ev.Type, c.cfg.Callback.Events) {
		return
	}
	if err := c.cfg.Dispatcher.Dispatch(&dispatcher.Event{
		Payload:     ev,
		Destination: c.cfg.Callback.URL,
		SigningKey:  c.cfg.Callback.Key,
	}); err != nil {
		c.logger.Warn("Failed to dispatch event", "type", ev.Type, "error", err)
	}
}

// validateJobs checks descriptors and uniqueness before anything is dispatched.
func validateJobs(jobs []job.Job) error {
	if len(jobs) == 0 {
		return apperrors.Config("jobs", "at least one job is required")
	}
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		if seen[j.ID] {
			return apperrors.Config("job.id", fmt.Sprintf("duplicate job ID %q", j.ID))
		}
		seen[j.ID] = true
	}
	return nil
}
