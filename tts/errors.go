package tts

import (
	"errors"
	"time"
)

// Common errors for the speech system.
var (
	// Synthesis errors
	ErrSynthesisFailed   = errors.New("speech synthesis failed")
	ErrSynthesisTimeout  = errors.New("speech synthesis timed out")
	ErrEngineUnavailable = errors.New("speech engine is not available")
	ErrBusy              = errors.New("a synthesis call is already in flight")
	ErrKilled            = errors.New("synthesis was killed")
	ErrVoiceNotFound     = errors.New("requested voice not found")
	ErrUnknownEngine     = errors.New("unknown speech engine")

	// Controller errors
	ErrInvalidOperation = errors.New("operation not valid in the current state")

	// Source errors
	ErrEmptyContent      = errors.New("empty content provided")
	ErrUnsupportedSource = errors.New("unsupported source")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsRecoverableError reports whether playback can continue past err.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrEngineUnavailable),
		errors.Is(err, ErrUnknownEngine),
		errors.Is(err, ErrInvalidConfig):
		return false
	}

	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for errors that are absorbed by playback.
	SeverityWarning
	// SeverityError is for errors that end a session.
	SeverityError
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// TTSError is the caller-visible form of a speech error. It carries the
// sentinel cause and where it happened, never process-level detail.
type TTSError struct {
	Err       error          // The underlying sentinel error
	Component string         // Component that generated the error
	Action    string         // Action being performed when the error occurred
	Severity  ErrorSeverity  // Severity of the error
	Timestamp time.Time      // When the error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Err == nil {
		return "unknown speech error"
	}
	if e.Action != "" {
		return e.Action + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *TTSError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewTTSError creates a new error with context.
func NewTTSError(err error, component, action string) *TTSError {
	return &TTSError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the error severity.
func (e *TTSError) WithSeverity(severity ErrorSeverity) *TTSError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value any) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// sanitize reduces err to the first sentinel it wraps so that exit codes,
// stderr and temp paths stay in the logs.
func sanitize(err error) error {
	for _, sentinel := range []error{
		ErrEngineUnavailable,
		ErrSynthesisTimeout,
		ErrSynthesisFailed,
		ErrVoiceNotFound,
		ErrUnknownEngine,
		ErrBusy,
		ErrKilled,
		ErrInvalidConfig,
		ErrInvalidOperation,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return ErrSynthesisFailed
}
