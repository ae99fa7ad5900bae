package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrConflict        = errors.New("operation conflicts with session status")
	ErrInvalidState    = errors.New("invalid session state transition")

	// Answer errors
	ErrValidation = errors.New("answer validation failed")

	// Proposal errors
	ErrInsufficientData = errors.New("insufficient data for proposal")
	ErrDraftNotFound    = errors.New("proposal draft not found")
	ErrStreamCancelled  = errors.New("proposal stream cancelled")
	ErrStreamConsumed   = errors.New("proposal stream already consumed")

	// Provider errors
	ErrProvider              = errors.New("llm provider call failed")
	ErrAllProvidersExhausted = errors.New("all llm providers exhausted")
	ErrNoProviders           = errors.New("no llm providers configured")
	ErrStreamInterrupted     = errors.New("llm stream interrupted")

	// Request errors
	ErrMissingField      = errors.New("required field is missing")
	ErrInvalidFormat     = errors.New("invalid format")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrCallbacksDisabled = errors.New("async generation is disabled: callbacks are not configured")
)

// ErrorKind is the machine readable class of a failure.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindConflict           ErrorKind = "conflict"
	KindInvalidState       ErrorKind = "invalid_state"
	KindProvider           ErrorKind = "provider"
	KindProvidersExhausted ErrorKind = "providers_exhausted"
	KindInsufficientData   ErrorKind = "insufficient_data"
	KindStreamInterrupted  ErrorKind = "stream_interrupted"
	KindNotFound           ErrorKind = "not_found"
	KindBadRequest         ErrorKind = "bad_request"
	KindCancelled          ErrorKind = "cancelled"
	KindInternal           ErrorKind = "internal"
)

type kinded interface {
	Kind() ErrorKind
}

// KindOf classifies any error returned by the use cases.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrDraftNotFound):
		return KindNotFound
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrCallbacksDisabled):
		return KindBadRequest
	case errors.Is(err, ErrStreamCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrNoProviders):
		return KindProvidersExhausted
	default:
		return KindInternal
	}
}

type ValidationLayer string

const (
	ValidationLayerRule     ValidationLayer = "rule"
	ValidationLayerSemantic ValidationLayer = "semantic"
)

// ValidationError rejects one answer. Nothing is stored when it is returned.
type ValidationError struct {
	QuestionKey string
	Layer       ValidationLayer
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed for %q: %s", e.Layer, e.QuestionKey, e.Reason)
}

func (e *ValidationError) Unwrap() error   { return ErrValidation }
func (e *ValidationError) Kind() ErrorKind { return KindValidation }

// ConflictError is returned when an operation is not allowed in the current status.
type ConflictError struct {
	SessionID string
	Status    SessionStatus
	Operation string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s session %s in status %s", e.Operation, e.SessionID, e.Status)
}

func (e *ConflictError) Unwrap() error   { return ErrConflict }
func (e *ConflictError) Kind() ErrorKind { return KindConflict }

// InvalidStateError is returned for a status transition outside the legal set.
type InvalidStateError struct {
	SessionID string
	From      SessionStatus
	To        SessionStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session %s cannot move from %s to %s", e.SessionID, e.From, e.To)
}

func (e *InvalidStateError) Unwrap() error   { return ErrInvalidState }
func (e *InvalidStateError) Kind() ErrorKind { return KindInvalidState }

// InsufficientDataError is returned when a proposal is requested before any answer exists.
type InsufficientDataError struct {
	SessionID string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("session %s has no answers to build a proposal from", e.SessionID)
}

func (e *InsufficientDataError) Unwrap() error   { return ErrInsufficientData }
func (e *InsufficientDataError) Kind() ErrorKind { return KindInsufficientData }

// ProviderError is a single provider call failure, tagged retryable or not.
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	class := "non-retryable"
	if e.Retryable {
		class = "retryable"
	}
	return fmt.Sprintf("provider %s (%s): %v", e.Provider, class, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProvider, e.Err} }
func (e *ProviderError) Kind() ErrorKind { return KindProvider }

// NewRetryableError tags err as retryable for the named provider.
func NewRetryableError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: true, Err: err}
}

// NewFatalError tags err as non-retryable for the named provider.
func NewFatalError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: false, Err: err}
}

// IsRetryable reports whether err carries a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// ProviderFailure is one entry of the exhaustion diagnostics.
type ProviderFailure struct {
	Provider  string `json:"provider"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
	Attempts  int    `json:"attempts"`
}

// AllProvidersExhaustedError carries per-provider failures in the order they were tried.
// Aborted is set when a non-retryable failure stopped the chain early.
type AllProvidersExhaustedError struct {
	Failures []ProviderFailure
	Aborted  bool
}

func (e *AllProvidersExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Provider, f.Reason))
	}
	prefix := "all llm providers exhausted"
	if e.Aborted {
		prefix = "llm call aborted"
	}
	return fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, "; "))
}

func (e *AllProvidersExhaustedError) Unwrap() error   { return ErrAllProvidersExhausted }
func (e *AllProvidersExhaustedError) Kind() ErrorKind { return KindProvidersExhausted }

// StreamInterruptedError ends a stream that failed after its first token.
type StreamInterruptedError struct {
	Provider string
	Emitted  int
	Err      error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream from %s interrupted after %d tokens: %v", e.Provider, e.Emitted, e.Err)
}

func (e *StreamInterruptedError) Unwrap() []error { return []error{ErrStreamInterrupted, e.Err} }
func (e *StreamInterruptedError) Kind() ErrorKind { return KindStreamInterrupted }
