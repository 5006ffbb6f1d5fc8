package core

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies errors surfaced by the engine.
type FailureKind string

const (
	// FailureWorker is a single worker error. It never aborts a gather phase.
	FailureWorker FailureKind = "worker"
	// FailureTimeout means the turn or a worker exceeded its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailurePersistence means a checkpoint could not be read or written.
	FailurePersistence FailureKind = "persistence"
	// FailureConfiguration means a collaborator could not be set up.
	FailureConfiguration FailureKind = "configuration"
	// FailureTerminalStep means the decision step failed and the turn aborted.
	FailureTerminalStep FailureKind = "terminal_step"
)

// Failure is the typed error returned by engine components.
type Failure struct {
	Kind FailureKind
	Op   string
	Role Role
	Err  error
}

// NewFailure wraps err with kind and operation.
func NewFailure(kind FailureKind, op string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: err}
}

// NewWorkerFailure wraps err for the worker playing role.
func NewWorkerFailure(role Role, err error) *Failure {
	kind := FailureWorker
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTimeout
	}
	return &Failure{Kind: kind, Op: "worker", Role: role, Err: err}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	prefix := string(f.Kind)
	if f.Op != "" {
		prefix += " " + f.Op
	}
	if f.Role != "" {
		prefix += " [" + string(f.Role) + "]"
	}
	if f.Err == nil {
		return prefix + " failure"
	}
	return fmt.Sprintf("%s: %v", prefix, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether re-issuing the turn can succeed.
func (f *Failure) Retryable() bool {
	return f.Kind == FailureTimeout || f.Kind == FailurePersistence
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err carries a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == kind
}
