// Package job defines the unit of work, its outcome, and the result ledger.
package job

import (
	"regexp"
	"time"

	"simdispatch/internal/apperrors"
)

// Validation limits
const (
	maxJobIDLength = 128
	maxCores       = 256
)

// jobIDPattern allows alphanumeric, hyphens, and underscores
var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Job describes one unit of simulation work (a plan). Immutable once
// submitted to the coordinator; exactly one worker reads it during execution.
type Job struct {
	ID       string        `yaml:"id"`       // plan identifier, opaque to the coordinator
	Cores    int           `yaml:"cores"`    // compute units the engine needs
	InputDir string        `yaml:"inputDir"` // directory holding the engine's input deck
	Artifact string        `yaml:"artifact"` // expected output file, relative to the working directory
	Timeout  time.Duration `yaml:"timeout"`  // optional override of the run default
}

// Validate checks the descriptor before scheduling. All violations are
// configuration errors and abort the run.
func (j Job) Validate() error {
	if j.ID == "" {
		return apperrors.Config("job.id", "job ID is required")
	}
	if len(j.ID) > maxJobIDLength {
		return apperrors.Config("job.id", "job ID exceeds maximum length")
	}
	if !jobIDPattern.MatchString(j.ID) {
		return apperrors.Config("job.id", "job ID must be alphanumeric (hyphens and underscores allowed)")
	}
	if j.Cores <= 0 {
		return apperrors.Config("job.cores", "cores must be a positive integer")
	}
	if j.Cores > maxCores {
		return apperrors.Config("job.cores", "cores exceeds supported maximum")
	}
	if j.InputDir == "" {
		return apperrors.Config("job.inputDir", "input directory is required")
	}
	if j.Artifact == "" {
		return apperrors.Config("job.artifact", "expected output artifact is required")
	}
	return nil
}

// Outcome is the immutable record of how one job's execution concluded.
// Success is only reported after the expected artifact was verified to exist;
// a zero exit status alone never counts as success.
type Outcome struct {
	JobID        string
	WorkerID     string
	Success      bool
	ArtifactPath string              // caller-visible artifact location, set on success
	Category     apperrors.Category  // failure class, empty on success
	Err          string              // failure message, empty on success
	Duration     time.Duration       // wall-clock execution time
	StagingDir   string              // staging location kept for debugging when autoclean is off
}

// Succeeded creates a successful outcome with the verified artifact location.
func Succeeded(jobID, workerID, artifactPath string, d time.Duration) Outcome {
	return Outcome{
		JobID:        jobID,
		WorkerID:     workerID,
		Success:      true,
		ArtifactPath: artifactPath,
		Duration:     d,
	}
}

// Failed creates a failed outcome, deriving the category from err.
func Failed(jobID, workerID string, err error, d time.Duration) Outcome {
	return Outcome{
		JobID:    jobID,
		WorkerID: workerID,
		Category: apperrors.CategoryOf(err),
		Err:      err.Error(),
		Duration: d,
	}
}

// Ledger is the aggregated set of per-job outcomes for one run, keyed by job
// ID. Iteration order is unspecified.
type Ledger map[string]Outcome

// Failures returns all failed outcomes.
func (l Ledger) Failures() []Outcome {
	var out []Outcome
	for _, o := range l {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// SilentFailures returns outcomes where the engine exited cleanly but
// produced no output. These deserve the loudest reporting.
func (l Ledger) SilentFailures() []Outcome {
	var out []Outcome
	for _, o := range l {
		if o.Category == apperrors.CategorySilentFailure {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded returns the number of successful outcomes.
func (l Ledger) Succeeded() int {
	n := 0
	for _, o := range l {
		if o.Success {
			n++
		}
	}
	return n
}
