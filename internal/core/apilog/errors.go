package apilog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced log record does not exist.
var ErrNotFound = errors.New("api log not found")

// ErrVersionConflict is returned when an update carries an expected version
// that no longer matches the stored record. It signals that a concurrent
// writer got there first and the caller should re-read before retrying.
var ErrVersionConflict = errors.New("api log version conflict")

// ValidationError indicates a malformed module name or a request missing
// required transport fields. No record is created and no call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
