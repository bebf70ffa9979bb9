// Package apperr defines the error taxonomy shared across the engine.
//
// NotFound is normal control flow for optional resources (settings files,
// companions, theme overrides) and is never an error condition by itself.
// PermissionDenied is always surfaced and must never be downgraded to
// NotFound. IO errors are transient and surfaced without retry.
package apperr

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrParse            = errors.New("parse error")
	ErrIO               = errors.New("io error")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyExists    = errors.New("already exists")
)

// FromOS maps an operating-system filesystem error onto a sentinel,
// keeping the original error in the chain.
func FromOS(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// IsNotFound reports whether err represents an absent resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
