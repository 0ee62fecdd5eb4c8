// Package interview orchestrates interview turns: it composes LLM calls
// from session history, detects end-of-interview signals, and keeps the
// session record and audit trail consistent around each turn.
package interview

import (
	"errors"
	"fmt"
	"strings"
)

// RetryClass indicates whether a generation error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"
	RetryClassMaybe        RetryClass = "maybe" // retry with a reduced budget
	RetryClassNonRetryable RetryClass = "non_retryable"
)

// ClientError reports a malformed request: missing text and audio, blank
// role, and similar caller mistakes.
type ClientError struct {
	Reason string
}

func (e *ClientError) Error() string {
	return e.Reason
}

// InvalidStateError reports a session that exists but cannot accept turns:
// already ended, or missing its role or history. Reason is the
// human-readable string returned to the caller with the termination code.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid session state: %s", e.Reason)
}

// GenerationError wraps a collaborator failure with its retry
// classification. When one of these surfaces, the model turn was not
// appended and the interaction is safe to resubmit.
type GenerationError struct {
	Err   error
	Class RetryClass
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("generation error: %s", e.Class)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same turn may succeed.
func (e *GenerationError) Retryable() bool {
	return e.Class != RetryClassNonRetryable
}

// ClassifyGenerationError classifies an error from an LLM provider call.
// Providers return raw SDK errors; the classification is string-based
// because the SDKs do not expose a common error taxonomy.
func ClassifyGenerationError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Class
	}

	errStr := strings.ToLower(err.Error())

	// Rate limits and server-side failures.
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "overloaded") {
		return RetryClassRetryable
	}

	// Network failures.
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "temporary failure") {
		return RetryClassRetryable
	}

	if strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled") {
		return RetryClassMaybe
	}

	// Auth, quota, and malformed requests never recover on retry.
	if strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing") {
		return RetryClassNonRetryable
	}

	return RetryClassNonRetryable
}
