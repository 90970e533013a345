package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFallbackNotImplemented signals that a generator has no degraded
// mode. Distinct from a fallback that ran and failed.
var ErrFallbackNotImplemented = errors.New("fallback not implemented")

// ErrDuplicateWork means the per-scene mutex was already held. Not a
// failure — the caller gets an "already in progress" result.
var ErrDuplicateWork = errors.New("operation already in progress")

// ProviderError wraps a single provider failure with enough context to
// decide whether a retry can help.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retriable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed (status=%d retriable=%t): %v", e.Provider, e.StatusCode, e.Retriable, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// GenerationExhaustedError is the terminal failure of a generation
// service: all retries spent and the fallback (if any) failed too.
type GenerationExhaustedError struct {
	Service     string
	Attempts    int
	LastErr     error
	FallbackErr error // nil when no fallback exists
}

func (e *GenerationExhaustedError) Error() string {
	msg := fmt.Sprintf("%s failed after %d attempts: %v", e.Service, e.Attempts, e.LastErr)
	if e.FallbackErr != nil {
		msg += fmt.Sprintf(" (fallback: %v)", e.FallbackErr)
	}
	return msg
}

func (e *GenerationExhaustedError) Unwrap() error { return e.LastErr }

// AggregateBlockedError marks a join callback that observed failed
// siblings: the aggregate step is skipped, never silently completed
// with partial data.
type AggregateBlockedError struct {
	Scope  string // e.g. "project:<id>" or "scene:<id>"
	Failed []string
}

func (e *AggregateBlockedError) Error() string {
	return fmt.Sprintf("aggregate %s blocked by failed members: %s", e.Scope, strings.Join(e.Failed, ", "))
}
