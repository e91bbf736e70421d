package ipcsem

import "errors"

var (
	ErrInvalidBuffer  = errors.New("invalid buffer")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidName    = errors.New("invalid semaphore name")
	ErrInvalidPermits = errors.New("invalid permits")
	ErrRoleViolation  = errors.New("operation not permitted for role")
	ErrAlreadyExists  = errors.New("semaphore already exists")
	ErrNotFound       = errors.New("semaphore not found")
	ErrOverflow       = errors.New("permit count overflow")
	ErrClosed         = errors.New("semaphore closed")
	ErrCorruptState   = errors.New("corrupt semaphore state")
	ErrNotSupported   = errors.New("not supported on this platform")
)
