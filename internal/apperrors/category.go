package apperrors

import (
	"context"
	"errors"
)

// Category is the stable, user-visible failure class stamped into outcomes.
// Categories let a caller distinguish "ran and produced verified output",
// "ran, exited cleanly, but produced no output", and "did not complete".
type Category string

const (
	CategoryNone          Category = ""
	CategoryConfig        Category = "config"
	CategoryConnectivity  Category = "connectivity"
	CategoryPermission    Category = "permission"
	CategoryProcess       Category = "process"
	CategorySilentFailure Category = "silent-failure"
	CategoryTimeout       Category = "timeout"
	CategoryInternal      Category = "internal"
)

// CategoryOf classifies an error into its failure category.
// Unrecognized errors are classified as internal; nil is CategoryNone.
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrConfig):
		return CategoryConfig
	case errors.Is(err, ErrConnectivity):
		return CategoryConnectivity
	case errors.Is(err, ErrPermission):
		return CategoryPermission
	case errors.Is(err, ErrProcess):
		return CategoryProcess
	case errors.Is(err, ErrNoArtifact):
		return CategorySilentFailure
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	default:
		return CategoryInternal
	}
}
