package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrDisposed       = errors.New("bootstrap orchestrator disposed")
	ErrAlreadyRunning = errors.New("bootstrap already running")
	ErrNotInitialized = errors.New("remote store not initialized")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

// ConnectionError means the remote store is unreachable or unhealthy.
type ConnectionError struct {
	Message string
	Err     error
}

func (err *ConnectionError) Error() string {
	if err.Message != "" {
		return err.Message
	}
	if err.Err != nil {
		return err.Err.Error()
	}
	return "remote store unavailable"
}

func (err *ConnectionError) Unwrap() error { return err.Err }

type TableFailure struct {
	Table string
	Err   error
}

// SchemaVerificationError aggregates every table that could not be probed.
type SchemaVerificationError struct {
	Failures []TableFailure
}

func (err *SchemaVerificationError) Error() string {
	parts := make([]string, 0, len(err.Failures))
	for _, f := range err.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Table, f.Err))
	}
	return fmt.Sprintf("table verification failed for %d table(s): %s", len(err.Failures), strings.Join(parts, "; "))
}

type SeedingError struct {
	Step string
	Err  error
}

func (err *SeedingError) Error() string {
	return err.Step + ": " + err.Err.Error()
}

func (err *SeedingError) Unwrap() error { return err.Err }

// QueryError wraps read failures of the remote store.
type QueryError struct {
	Table string
	Err   error
}

func (err *QueryError) Error() string {
	return fmt.Sprintf("querying %s: %v", err.Table, err.Err)
}

func (err *QueryError) Unwrap() error { return err.Err }

// WriteError wraps insert failures of the remote store.
type WriteError struct {
	Table string
	Err   error
}

func (err *WriteError) Error() string {
	return fmt.Sprintf("inserting into %s: %v", err.Table, err.Err)
}

func (err *WriteError) Unwrap() error { return err.Err }
