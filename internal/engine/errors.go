package engine

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

func ErrNotFound(path string) error {
	return NotFoundError{Path: path}
}

// IsNotFound reports whether err, or anything it wraps, is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Common errors
var (
	ErrTimedOut    = fmt.Errorf("poll window elapsed")
	ErrInvalidPath = fmt.Errorf("invalid path")
)
