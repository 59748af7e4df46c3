package vqnet

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyActivation is returned by Predict when the final layer
	// produces no output for a sample.
	ErrEmptyActivation = errors.New("empty final activation")

	// ErrBatchTooLarge is returned when a batch exceeds the configured batch size.
	ErrBatchTooLarge = errors.New("batch exceeds configured batch size")

	// ErrNoLabels is returned when a sample carries no labels.
	ErrNoLabels = errors.New("sample has no labels")
)

// ErrInvalidSample indicates a malformed input sample.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidSample struct {
	Sample int
	Reason string
	cause  error
}

func (e *ErrInvalidSample) Error() string {
	return fmt.Sprintf("invalid sample %d: %s", e.Sample, e.Reason)
}

func (e *ErrInvalidSample) Unwrap() error { return e.cause }

// ErrInvalidConfig indicates an invalid network configuration.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidConfig struct {
	Reason string
	cause  error
}

func (e *ErrInvalidConfig) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid config: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("invalid config: %s", e.Reason)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }
