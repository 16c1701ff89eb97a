// Package apperr defines the error values shared across hfx packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrNoFilterCriteria    = errors.New("no filter criteria")
	ErrEmptyResolution     = errors.New("network query returned no rows")
	ErrLayerNotFound       = errors.New("layer not found")
	ErrUnsupportedLocation = errors.New("unsupported location")
)

// InvalidIdentifierError reports an identifier whose prefix matches no category.
type InvalidIdentifierError struct {
	ID string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("`%s` is an invalid ID", e.ID)
}

// Unwrap lets errors.Is match ErrInvalidIdentifier.
func (e *InvalidIdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}
