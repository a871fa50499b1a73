package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/jointstream/internal/ir"
)

// RuntimeError represents an error detected while a run is active.
//
// Runtime errors include:
//   - Publish failure: the bus rejected a command
//   - Completion conflict: the completion signal was written twice
//   - Format mismatch: a command's arrays do not match the joint count
//   - Subscriber timeout: nobody attached to the topic in time
//   - Strategy failure: the trajectory could not be initialized or evaluated
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Tick is the tick being processed, 0 before the first tick.
	Tick int64

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePublishFailure indicates the bus refused a command.
	ErrCodePublishFailure RuntimeErrorCode = "PUBLISH_FAILURE"

	// ErrCodeCompletionConflict indicates a second write to the completion signal.
	ErrCodeCompletionConflict RuntimeErrorCode = "COMPLETION_CONFLICT"

	// ErrCodeFormatMismatch indicates a command failed its length check.
	ErrCodeFormatMismatch RuntimeErrorCode = ir.ErrCodeFormatMismatch

	// ErrCodeSubscriberTimeout indicates the startup gate timed out.
	ErrCodeSubscriberTimeout RuntimeErrorCode = "SUBSCRIBER_TIMEOUT"

	// ErrCodeStrategyFailure indicates the strategy returned an error.
	ErrCodeStrategyFailure RuntimeErrorCode = "STRATEGY_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Tick > 0 {
		msg = fmt.Sprintf("%s (tick=%d)", msg, e.Tick)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsPublishFailure returns true if the error is a publish failure.
// Uses errors.As to handle wrapped errors.
func IsPublishFailure(err error) bool {
	return hasCode(err, ErrCodePublishFailure)
}

// IsCompletionConflict returns true if the error is a completion conflict.
func IsCompletionConflict(err error) bool {
	return hasCode(err, ErrCodeCompletionConflict)
}

// IsFormatMismatch returns true for a RuntimeError with FORMAT_MISMATCH and
// for a bare ir.FormatError.
func IsFormatMismatch(err error) bool {
	return hasCode(err, ErrCodeFormatMismatch) || ir.IsFormatError(err)
}

// IsSubscriberTimeout returns true if the startup gate timed out.
func IsSubscriberTimeout(err error) bool {
	return hasCode(err, ErrCodeSubscriberTimeout)
}

// IsStrategyFailure returns true if the strategy failed.
func IsStrategyFailure(err error) bool {
	return hasCode(err, ErrCodeStrategyFailure)
}

// NewPublishError creates a RuntimeError for a bus failure.
func NewPublishError(tick int64, topic string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePublishFailure,
		Message: fmt.Sprintf("publish on %s failed", topic),
		Tick:    tick,
		Err:     err,
	}
}

// NewCompletionConflict creates a RuntimeError for a rejected second write.
func NewCompletionConflict(stored, rejected string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCompletionConflict,
		Message: fmt.Sprintf("completion already set to %q, rejected %q", stored, rejected),
	}
}

// NewFormatError creates a RuntimeError wrapping an ir.FormatError.
func NewFormatError(tick int64, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeFormatMismatch,
		Message: "command failed length check",
		Tick:    tick,
		Err:     err,
	}
}

// NewSubscriberTimeout creates a RuntimeError for an expired startup gate.
func NewSubscriberTimeout(topic string, waited time.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSubscriberTimeout,
		Message: fmt.Sprintf("no subscriber on %s after %s", topic, waited),
	}
}

// NewStrategyError creates a RuntimeError for a failed init or evaluation.
func NewStrategyError(tick int64, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStrategyFailure,
		Message: "strategy failed",
		Tick:    tick,
		Err:     err,
	}
}
