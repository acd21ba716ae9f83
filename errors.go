package llcsim

import (
	"errors"

	"github.com/archsim/llcsim/internal/cerr"
)

// Error, ErrorCode and the error codes are re-exported from internal/cerr
// so callers outside the module never need to import an internal package
// to do errors.As(err, &llcsim.Error{}) style matching.
type Error = cerr.Error
type ErrorCode = cerr.Code

const (
	ErrCodeQueueFull = cerr.ErrCodeQueueFull
	ErrCodeMSHRFull  = cerr.ErrCodeMSHRFull

	ErrCodeMissingMSHREntry  = cerr.ErrCodeMissingMSHREntry
	ErrCodeInvalidSetIndex   = cerr.ErrCodeInvalidSetIndex
	ErrCodeDirtySTLBVictim   = cerr.ErrCodeDirtySTLBVictim
	ErrCodeBypassOnWriteback = cerr.ErrCodeBypassOnWriteback
)

// NewError constructs a structured error; cache name and cpu are always
// meaningful here, so there is a single constructor shape rather than
// separate ones per error category.
func NewError(op, cacheName string, cpu int, code ErrorCode, msg string) *Error {
	return cerr.New(op, cacheName, cpu, code, msg)
}

// IsCode reports whether err is a *Error carrying code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
