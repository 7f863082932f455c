// Package apperrors provides the categorized error taxonomy for job execution.
//
// Every expected failure mode a backend can hit maps to exactly one sentinel,
// so callers can classify outcomes with errors.Is() instead of string matching.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for classification via errors.Is().
var (
	// ErrConfig is a malformed worker or job configuration. Detected eagerly
	// at construction time; aborts the run before scheduling starts.
	ErrConfig = errors.New("configuration error")

	// ErrConnectivity means the remote host or container daemon is unreachable.
	ErrConnectivity = errors.New("connectivity error")

	// ErrPermission means credentials or session access were rejected.
	ErrPermission = errors.New("permission error")

	// ErrProcess means the engine process exited with a non-zero status.
	ErrProcess = errors.New("process failure")

	// ErrNoArtifact means the engine exited cleanly but the expected output
	// artifact is absent. The canonical symptom of launching the engine under
	// a non-interactive session identity.
	ErrNoArtifact = errors.New("no output artifact")

	// ErrTimeout means execution exceeded its wall-clock budget.
	ErrTimeout = errors.New("timeout")

	// ErrInternal is an infrastructure-level surprise (staging I/O, etc.).
	ErrInternal = errors.New("internal error")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Op       string // Operation that failed (e.g., "remote.launch")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Config creates a configuration error for a specific field.
func Config(field, message string) error {
	return &Error{
		Sentinel: ErrConfig,
		Message:  fmt.Sprintf("%s: %s", field, message),
		Op:       field,
	}
}

// Connectivity creates a connectivity error wrapping an underlying cause.
func Connectivity(op string, cause error) error {
	return &Error{
		Sentinel: ErrConnectivity,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Permission creates a permission/authentication error.
func Permission(op string, cause error) error {
	return &Error{
		Sentinel: ErrPermission,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Process creates a process-failure error for a non-zero exit status.
func Process(op string, exitCode int) error {
	return &Error{
		Sentinel: ErrProcess,
		Message:  fmt.Sprintf("%s: engine exited with status %d", op, exitCode),
		Op:       op,
	}
}

// NoArtifact creates a silent-failure error for a missing output artifact.
func NoArtifact(name string) error {
	return &Error{
		Sentinel: ErrNoArtifact,
		Message:  fmt.Sprintf("engine exited cleanly but expected artifact %q was not produced", name),
	}
}

// Timeout creates a timeout error for an exceeded wall-clock budget.
func Timeout(op string, budget time.Duration) error {
	return &Error{
		Sentinel: ErrTimeout,
		Message:  fmt.Sprintf("%s: execution exceeded %s budget", op, budget),
		Op:       op,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
