// Package core provides the memory engine service: the orchestrator that
// ties extraction, scoring, tiering, storage, ranking, and persona learning
// together behind one explicitly constructed client.
package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Predefined errors for common failure scenarios.
var (
	// ErrEmptyContent indicates a store request with no content.
	ErrEmptyContent = errors.New("content is empty")

	// ErrDimensionMismatch indicates an embedding whose length does not
	// match the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")
)

// EngineError wraps errors with operation context.
//
// It records which engine operation failed and whether the failure is worth
// retrying, so callers can distinguish validation errors (never retried)
// from transient storage or embedding failures (retryable with backoff).
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Retryable marks transient failures (timeouts, connection loss).
	Retryable bool
}

// Error returns a formatted error message in the form
// "memengine: <Op>: <Err>".
func (e *EngineError) Error() string {
	return fmt.Sprintf("memengine: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err with operation context, classifying it as
// retryable or fatal. Returns nil if err is nil.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Op:        op,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// IsRetryable reports whether err is a transient failure worth retrying
// with backoff. Validation errors are never retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable treats timeouts, cancellation deadlines, and network
// errors as retryable; everything else (validation, schema, authorization)
// is fatal.
func classifyRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, ErrInvalidConfig):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
