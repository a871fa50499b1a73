package analysis

import (
	"errors"
	"fmt"

	"github.com/roach88/jointstream/internal/ir"
)

// Error codes.
const (
	ErrCodeFormatMismatch = ir.ErrCodeFormatMismatch
	ErrCodeNoJointData    = "NO_JOINT_DATA"
	ErrCodeJointNotFound  = "JOINT_NOT_FOUND"
)

// Error is an analysis failure.
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

func hasCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

// IsFormatMismatch returns true if err is a FORMAT_MISMATCH error.
func IsFormatMismatch(err error) bool {
	return hasCode(err, ErrCodeFormatMismatch)
}

// IsNoJointData returns true if err is a NO_JOINT_DATA error.
func IsNoJointData(err error) bool {
	return hasCode(err, ErrCodeNoJointData)
}

// IsJointNotFound returns true if err is a JOINT_NOT_FOUND error.
func IsJointNotFound(err error) bool {
	return hasCode(err, ErrCodeJointNotFound)
}
