// Package common defines shared sentinel errors and small helpers used
// across photokeeper layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Input errors (user-correctable).
	ErrNoFile       = errors.New("no file provided")
	ErrInvalidInput = errors.New("invalid input")

	// Capacity errors.
	ErrTooLarge = errors.New("file too large")

	// Format errors.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// Object storage errors.
	ErrStorageUnauthorized = errors.New("storage authorization failed")
	ErrStorageTooLarge     = errors.New("storage rejected payload size")

	// Record store errors. These never reach the caller of a submission.
	ErrSchemaUnavailable = errors.New("record schema unavailable")

	// Key derivation.
	ErrIDExhausted = errors.New("could not allocate unique submission id")

	// Generic/internal.
	ErrorInternal = errors.New("internal error")
)
