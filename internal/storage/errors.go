package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors. Implementations wrap them in *ObjectError.
var (
	ErrNotFound     = errors.New("object not found")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds maximum size")
	ErrAccessDenied = errors.New("access denied")
)

// ObjectError records which read failed.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

func objectErr(op, key string, err error) error {
	return &ObjectError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err means there is no object at the key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
