package recording

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeNotFound        = "RECORDING_NOT_FOUND"
	ErrCodeInvalidMetadata = "INVALID_METADATA"
)

// Error is a recording lookup or metadata failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err is a RECORDING_NOT_FOUND error.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == ErrCodeNotFound
}

// IsInvalidMetadata returns true if err is an INVALID_METADATA error.
func IsInvalidMetadata(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == ErrCodeInvalidMetadata
}

func notFound(format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}
