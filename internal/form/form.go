// Package form validates user-submitted input before the service layer
// touches storage.
//
// Every validator collects all problems at once instead of stopping at the
// first, so a client can show one message next to each bad field. The
// collected errors become a single apperror.ErrValidation with a field map.
package form

import (
	"github.com/sakif/blog/internal/apperror"
)

// Errors maps a field name to its first error message.
type Errors map[string]string

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

// Valid reports whether no errors were recorded.
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Err returns nil when valid, otherwise an apperror.Invalid carrying every field.
func (e Errors) Err() error {
	if e.Valid() {
		return nil
	}
	return apperror.Invalid(e)
}
