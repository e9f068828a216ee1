package expression

import (
	"errors"
	"fmt"

	"github.com/Knetic/govaluate"
)

// GovaluateMatcher is the production Matcher. Compiled expressions are kept in
// a bounded cache keyed by expression text; rules are re-evaluated on every
// state update, so recompiling each time would dominate the evaluation cost.
type GovaluateMatcher struct {
	cache *compiledCache
}

// NewMatcher creates a GovaluateMatcher with the default cache size.
func NewMatcher() *GovaluateMatcher {
	return &GovaluateMatcher{cache: newCompiledCache(defaultCacheSize)}
}

// Match compiles expr if needed and evaluates it against bindings.
func (m *GovaluateMatcher) Match(expr string, bindings map[string]any) (bool, error) {
	compiled, err := m.compile(expr)
	if err != nil {
		return false, &SyntaxError{Expr: expr, Err: err}
	}

	result, err := compiled.Eval(bindingParameters(bindings))
	if err != nil {
		var unresolved *UnresolvedIdentifierError
		if errors.As(err, &unresolved) {
			return false, err
		}
		return false, fmt.Errorf("evaluate expression %q: %w", expr, err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, &SyntaxError{
			Expr: expr,
			Err:  fmt.Errorf("expression is not a boolean predicate (got %T)", result),
		}
	}

	return b, nil
}

func (m *GovaluateMatcher) compile(expr string) (*govaluate.EvaluableExpression, error) {
	if compiled, ok := m.cache.get(expr); ok {
		return compiled, nil
	}

	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, err
	}

	m.cache.set(expr, compiled)
	return compiled, nil
}

// bindingParameters adapts a bindings map to govaluate's parameter lookup.
// A missing identifier surfaces as UnresolvedIdentifierError instead of
// govaluate's generic lookup failure.
type bindingParameters map[string]any

func (p bindingParameters) Get(name string) (any, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return nil, &UnresolvedIdentifierError{Identifier: name}
}
