package domain

import "errors"

var (
	ErrInvalidSource    = errors.New("invalid video source")
	ErrDuplicateVideo   = errors.New("video already added")
	ErrCapacityExceeded = errors.New("maximum screens reached")
	ErrStreamNotFound   = errors.New("stream not found")
	ErrAuthRequired     = errors.New("sign in required")
	ErrForbidden        = errors.New("session belongs to another user")
	ErrAlreadyExists    = errors.New("already in favorites")
	ErrSinkFailure      = errors.New("analytics sink failure")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session already ended")
	ErrShareUnsupported = errors.New("native share unsupported")
	ErrInvalidCapacity  = errors.New("capacity must be at least 1")
)
