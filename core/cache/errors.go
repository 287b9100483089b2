package cache

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the Try* methods wraps exactly one of these.
var (
	ErrStorage       = errors.New("storage error")
	ErrSerialization = errors.New("serialization error")
	ErrMiss          = errors.New("cache miss")
	ErrExpired       = errors.New("entry expired")
	ErrTooLarge      = errors.New("entry exceeds max cache size")
	ErrInvalidKey    = errors.New("invalid cache key")
)

// Error describes a failed cache operation.
type Error struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, key string, kind, err error) *Error {
	return &Error{Op: op, Key: key, Kind: kind, Err: err}
}

// IsMiss reports whether err means the key is simply not available.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss) || errors.Is(err, ErrExpired)
}
