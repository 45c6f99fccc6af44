package ports

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// WorkerErrorKind categorizes worker failures.
type WorkerErrorKind string

const (
	WorkerErrorTimeout   WorkerErrorKind = "timeout"
	WorkerErrorTransport WorkerErrorKind = "transport"
	WorkerErrorMalformed WorkerErrorKind = "malformed_response"
	WorkerErrorCancelled WorkerErrorKind = "cancelled"
	// WorkerErrorRejected means the backend refused the request itself,
	// for example bad credentials or an invalid model.
	WorkerErrorRejected WorkerErrorKind = "rejected"
)

// WorkerError is the error returned by workers and retrievers.
type WorkerError struct {
	Worker string
	Kind   WorkerErrorKind
	Err    error
}

func (e *WorkerError) Error() string {
	if e.Worker == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Worker, e.Kind, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed.
func (e *WorkerError) Retryable() bool {
	return e.Kind == WorkerErrorTimeout || e.Kind == WorkerErrorTransport
}

// NewWorkerError wraps err with a worker name and kind.
func NewWorkerError(worker string, kind WorkerErrorKind, err error) *WorkerError {
	return &WorkerError{Worker: worker, Kind: kind, Err: err}
}

// ClassifyError maps any error to a WorkerError. Context errors take
// precedence over an existing classification.
func ClassifyError(worker string, err error) *WorkerError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return NewWorkerError(worker, WorkerErrorCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewWorkerError(worker, WorkerErrorTimeout, err)
	}

	var we *WorkerError
	if errors.As(err, &we) {
		if we.Worker == "" {
			return NewWorkerError(worker, we.Kind, we.Err)
		}
		return we
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewWorkerError(worker, WorkerErrorTimeout, err)
	}
	return NewWorkerError(worker, WorkerErrorTransport, err)
}
