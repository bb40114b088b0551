package extentfs

import (
	"errors"
	"fmt"
	"syscall"
)

// DriverError is a wrapper around system errno codes, with a customizable
// error message and an optional wrapped cause. Every operation on a mounted
// file system fails with one of the predefined sentinels below, possibly
// annotated via WithMessage or Wrap.
type DriverError struct {
	ErrnoCode syscall.Errno
	message   string
	wrapped   error
}

// Error implements the `error` object interface. When called, it returns a
// string describing the error.
func (e *DriverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.ErrnoCode.Error()
}

func (e *DriverError) Unwrap() error {
	return e.wrapped
}

// Is reports errno equality, so errors.Is(err, ErrNotFound) matches any
// derived error carrying ENOENT.
func (e *DriverError) Is(target error) bool {
	other, ok := target.(*DriverError)
	return ok && other.ErrnoCode == e.ErrnoCode
}

// WithMessage returns a copy of this error with a message appended. The
// original error is kept as the cause.
func (e *DriverError) WithMessage(message string) *DriverError {
	return &DriverError{
		ErrnoCode: e.ErrnoCode,
		message:   fmt.Sprintf("%s: %s", e.Error(), message),
		wrapped:   e,
	}
}

// Wrap returns a copy of this error with `err` recorded as its cause.
func (e *DriverError) Wrap(err error) *DriverError {
	return &DriverError{
		ErrnoCode: e.ErrnoCode,
		message:   fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		wrapped:   err,
	}
}

// NewDriverError creates a DriverError with a default message derived from
// the system's error code.
func NewDriverError(errnoCode syscall.Errno) *DriverError {
	return &DriverError{ErrnoCode: errnoCode}
}

// The complete failure taxonomy of the driver. Anything else that leaks
// across the operation boundary is a bug.
var (
	ErrNotFound          = NewDriverError(syscall.ENOENT)
	ErrNotADirectory     = NewDriverError(syscall.ENOTDIR)
	ErrNameTooLong       = NewDriverError(syscall.ENAMETOOLONG)
	ErrNoSpaceOnDevice   = NewDriverError(syscall.ENOSPC)
	ErrOutOfMemory       = NewDriverError(syscall.ENOMEM)
	ErrDirectoryNotEmpty = NewDriverError(syscall.ENOTEMPTY)
	ErrBadAddress        = NewDriverError(syscall.EFAULT)
	ErrInvalidArgument   = NewDriverError(syscall.EINVAL)
	ErrInvalidFileSystem = NewDriverError(syscall.ENODEV)
)

// Errno extracts the errno code from an error returned by a driver operation.
// Errors that don't carry one degrade to EIO.
func Errno(err error) syscall.Errno {
	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		return driverErr.ErrnoCode
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
