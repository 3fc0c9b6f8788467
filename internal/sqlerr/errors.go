// Package sqlerr defines the error taxonomy shared by the compiler, the capture
// parser and the schema catalog. Every error carries a Kind so callers can
// branch with errors.Is without matching on message text.
package sqlerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure. A Kind is itself an error so it can be used as
// the target of errors.Is.
type Kind string

const (
	// InvalidExpression: the capture parser met a construct it does not lower.
	InvalidExpression Kind = "invalid expression"
	// Configuration: a column, table or function could not be resolved.
	Configuration Kind = "configuration"
	// Structural: a fragment is malformed (empty list, wrong arity, empty alias).
	Structural Kind = "structural"
	// Capability: the active dialect does not support the construct.
	Capability Kind = "capability"
)

func (k Kind) Error() string { return string(k) }

// Error is the concrete error type returned by this module.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

// Error renders "<kind> error: <message>" followed by sorted context pairs.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error: ")
	b.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " (%s: %v)", k, e.Context[k])
		}
	}

	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// With returns the error with an extra context pair attached.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Invalid builds an InvalidExpression error.
func Invalid(format string, args ...any) *Error { return newf(InvalidExpression, format, args...) }

// Config builds a Configuration error.
func Config(format string, args ...any) *Error { return newf(Configuration, format, args...) }

// Structure builds a Structural error.
func Structure(format string, args ...any) *Error { return newf(Structural, format, args...) }

// Unsupported builds a Capability error.
func Unsupported(format string, args ...any) *Error { return newf(Capability, format, args...) }

// EmptyList is returned when an operator or list fragment has no operands at
// compile time.
func EmptyList(fragment string) *Error {
	return Structure("list is empty").With("fragment", fragment)
}

// KindOf returns the Kind of err, or "" when err is not from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
