package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks fatal setup problems: missing or mismatched
	// embedding model, empty corpus, invalid chunk parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransient marks upstream failures that may succeed on retry.
	ErrTransient = errors.New("transient upstream error")

	// ErrUpstreamUnavailable is returned once retries against an upstream
	// service are exhausted.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrIndexFormat marks a persisted index that cannot be read.
	ErrIndexFormat = errors.New("index format error")

	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// ConfigurationError wraps a fatal configuration problem.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}

// NewConfigurationError formats a ConfigurationError for op.
func NewConfigurationError(op, format string, args ...any) error {
	return &ConfigurationError{Op: op, Err: fmt.Errorf(format, args...)}
}

// TransientError wraps an upstream failure worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() []error {
	return []error{ErrTransient, e.Err}
}

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IndexFormatError reports an unreadable or corrupt index file.
type IndexFormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *IndexFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("index %s: %s", e.Path, e.Reason)
}

func (e *IndexFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrIndexFormat, e.Err}
	}
	return []error{ErrIndexFormat}
}

// ModelMismatchError reports an index built with a different embedding model
// than the one configured for queries.
type ModelMismatchError struct {
	IndexModel string
	QueryModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("embedding model mismatch: index built with %q, configured for %q", e.IndexModel, e.QueryModel)
}

func (e *ModelMismatchError) Unwrap() error {
	return ErrConfiguration
}
