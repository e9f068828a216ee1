// Package expression provides the boolean predicate capability used by rule
// evaluation. The engine depends only on the Matcher interface; the production
// implementation compiles expressions with govaluate and caches the result.
package expression

import (
	"errors"
	"fmt"
)

// Matcher evaluates a boolean expression against a set of identifier bindings.
// Implementations report syntax problems as *SyntaxError and references to
// unbound identifiers as *UnresolvedIdentifierError so callers can tell an
// authoring mistake from a device that simply has not reported yet.
type Matcher interface {
	Match(expr string, bindings map[string]any) (bool, error)
}

// SyntaxError reports an expression that could not be parsed.
type SyntaxError struct {
	Expr string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in expression %q: %v", e.Expr, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// UnresolvedIdentifierError reports an expression referencing an identifier
// with no binding. This is an expected condition, not an authoring error.
type UnresolvedIdentifierError struct {
	Identifier string
}

func (e *UnresolvedIdentifierError) Error() string {
	return fmt.Sprintf("unresolved identifier %q", e.Identifier)
}

// IsSyntaxError reports whether err is (or wraps) a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsUnresolvedIdentifier reports whether err is (or wraps) an
// UnresolvedIdentifierError.
func IsUnresolvedIdentifier(err error) bool {
	var ue *UnresolvedIdentifierError
	return errors.As(err, &ue)
}
