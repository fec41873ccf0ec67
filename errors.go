package ledger

import (
	"errors"
	"strings"
)

var (
	ErrFileNotFound  = errors.New("ledger file not found")
	ErrFileRead      = errors.New("unable to read ledger file")
	ErrFileWrite     = errors.New("unable to write ledger file")
	ErrValidation    = errors.New("validation failed")
	ErrAccountClosed = errors.New("account already closed")
)

// ValidationError carries every reason a value was rejected, in the order the
// checks ran.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// Is reports ErrValidation as a match so callers can test with errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// validationResult collects reasons; err returns nil when nothing failed.
type validationResult []string

func (r *validationResult) fail(reason string) {
	*r = append(*r, reason)
}

func (r validationResult) err() error {
	if len(r) == 0 {
		return nil
	}
	return &ValidationError{Reasons: r}
}
