package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/ledger-importer/internal/domain"
)

// ConfigurationError reports a required column that could not be resolved
// in the header row. It is returned before any row is processed.
type ConfigurationError struct {
	Role   domain.Role
	Column string   // configured header name that was searched for
	Header []string // header row as read
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required column not found: %q (role %s; header: %s)",
		e.Column, e.Role, strings.Join(e.Header, ", "))
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IOError wraps a read or write failure of a row source or sink.
type IOError struct {
	Op    string // "read" or "write"
	URI   string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URI, e.Cause)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}

// IsIOError reports whether err wraps an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
