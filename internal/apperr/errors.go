// Package apperr defines the error conditions that callers of the pipeline distinguish.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("store unavailable")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("upload exceeds size limit")
	ErrInvalid         = errors.New("invalid input")

	// ErrTagNotFound is also an ErrNotFound.
	ErrTagNotFound = fmt.Errorf("tag %w", ErrNotFound)
)
