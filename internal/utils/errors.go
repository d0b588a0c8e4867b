package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// TransformError marks a single raw record that could not be normalized.
// The ingestion pipeline logs it, drops the record, and continues with the
// rest of the page.
type TransformError struct {
	Source     string
	ExternalID string
	Err        error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s record %s: %v", e.Source, e.ExternalID, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// NewTransformError wraps a per-record normalization failure.
func NewTransformError(source, externalID string, err error) error {
	return &TransformError{Source: source, ExternalID: externalID, Err: err}
}

// IsTransformError reports whether err is a record-level transform failure.
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

// BatchError marks a persistence batch that failed as a unit. The run
// skips the batch, records the failure, and proceeds to the next batch.
type BatchError struct {
	Source    string
	BatchIdx  int
	BatchSize int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("persist %s batch %d (%d rows): %v", e.Source, e.BatchIdx, e.BatchSize, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// NewBatchError wraps a batch-level persistence failure.
func NewBatchError(source string, batchIdx, batchSize int, err error) error {
	return &BatchError{Source: source, BatchIdx: batchIdx, BatchSize: batchSize, Err: err}
}

// ScoringInputError marks an investor whose mandate could not be scored.
// The relevance engine skips the investor and keeps going.
type ScoringInputError struct {
	InvestorID string
	Err        error
}

func (e *ScoringInputError) Error() string {
	return fmt.Sprintf("score investor %s: %v", e.InvestorID, e.Err)
}

func (e *ScoringInputError) Unwrap() error {
	return e.Err
}

// NewScoringInputError wraps an invalid mandate or investor shape.
func NewScoringInputError(investorID string, err error) error {
	return &ScoringInputError{InvestorID: investorID, Err: err}
}
