package capture

import (
	"errors"
	"fmt"
)

// ErrNotFound signals a lookup for an entity id (or url key) with no row.
// Store reads return it instead of zero-valued records so callers can tell
// "no such entity" from "entity with default fields".
var ErrNotFound = errors.New("entity not found")

// ValidationError rejects a malformed submission before any capture row is
// created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid capture config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid capture config: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
