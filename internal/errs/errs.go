// Package errs holds the failure classes every public operation reports.
// Feature packages wrap one of these with a specific sentinel, so both
// errors.Is(err, errs.ErrValidation) and errors.Is(err, messages.ErrInvalidCoordinates) hold.
package errs

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)
