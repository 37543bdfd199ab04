package gqlerror

import (
	"errors"
	"fmt"

	"github.com/pmkol/gqlx/pkg/gql"
)

// Error is the terminal outcome of a failed request. Message is short and
// safe to show to end users. Diagnostic detail stays in Cause and in the Log.
type Error struct {
	Kind    Kind
	Message string

	// Errors lists the GraphQL errors of a validation failure.
	Errors []gql.Error

	// Cause is the original failure.
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of err if it is, or wraps, an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}
