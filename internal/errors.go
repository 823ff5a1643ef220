package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrActivationInProgress is returned when the same chat is already being activated.
	ErrActivationInProgress = errors.New("chat activation already in progress")
	// ErrNoModels is returned when a send is attempted without any model configured.
	ErrNoModels = errors.New("no models configured")
	// ErrNotAuthenticated is returned when the persistence API rejects the session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TransportError represents a failed call to one of the backends
type TransportError struct {
	Op     string // "save-chat", "chat", ...
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamError represents a stream that broke off, keeping what was received.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ParseError represents errors parsing data
type ParseError struct {
	Source string // "stream", "history", "template"
	Key    string // offending line, chat id or file path
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid model configuration field
type ValidationError struct {
	ModelID int
	Field   string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model %d: invalid %s: %v", e.ModelID, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError represents errors accessing the local transcript store
type StorageError struct {
	Path string
	Op   string // "open", "migrate", "read", "write"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
