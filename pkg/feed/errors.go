package feed

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse is the error envelope upstream market-data providers
// return alongside non-2xx statuses
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// UpstreamError describes a failed call to a market-data provider.
// Transient errors (timeouts, 5xx, 429) are worth retrying; fatal ones
// (other 4xx, malformed payloads) are not.
type UpstreamError struct {
	Source     string
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream error (%d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Source, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewTransientError marks a retryable upstream failure.
func NewTransientError(source, message string, err error) error {
	return &UpstreamError{Source: source, Message: message, Transient: true, Err: err}
}

// NewFatalError marks an upstream failure retrying cannot fix.
func NewFatalError(source, message string, err error) error {
	return &UpstreamError{Source: source, Message: message, Transient: false, Err: err}
}

// classifyStatus builds an UpstreamError for a non-2xx response. 429 and
// every 5xx are transient; remaining 4xx are fatal.
func classifyStatus(source string, statusCode int, message string) *UpstreamError {
	transient := statusCode == http.StatusTooManyRequests || statusCode >= 500
	return &UpstreamError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Transient:  transient,
	}
}

// IsTransient reports whether err is an upstream failure worth retrying.
func IsTransient(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Transient
	}
	return false
}

// IsFatal reports whether err is an upstream failure retrying cannot fix.
func IsFatal(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return !ue.Transient
	}
	return false
}

// IsCredential reports whether err is an authentication or authorization
// rejection. These short-circuit a whole job instead of a single page.
func IsCredential(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusForbidden
	}
	return false
}
