// Package predicate evaluates subscription predicates against events.
//
// A predicate arrives either as a shorthand string expression
// (`type = "track" and properties.plan exists`) or as a typed boolean
// tree ({"type": "and", "children": [...]}). Both decode into the same
// Node representation at the boundary; nothing downstream branches on
// the raw shape.
//
// Evaluation is total for well-formed predicates: a referenced field
// that is absent on the event is a non-match, never an error. Malformed
// predicates fail at decode time, before any event is considered.
package predicate

import (
	"fmt"
	"strings"
)

// Node is a decoded predicate. Evaluate it with Matches.
type Node interface {
	eval(event map[string]any) (bool, error)
}

// Matches reports whether event satisfies the predicate. It returns an
// error only for conditions that cannot be resolved at decode time
// (currently none of the built-in node kinds produce one; the error
// return exists for forward compatibility of the Node contract).
func Matches(n Node, event map[string]any) (bool, error) {
	if n == nil {
		return false, &EvalError{Reason: "nil predicate"}
	}
	return n.eval(event)
}

// ParseError reports a predicate that could not be decoded.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse predicate %q: %s", e.Input, e.Reason)
}

// EvalError reports a predicate that could not be evaluated.
type EvalError struct {
	Reason string
}

func (e *EvalError) Error() string {
	return "evaluate predicate: " + e.Reason
}

// Operator is a field comparison operator.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not-equals"
	OpExists    Operator = "exists"
	OpContains  Operator = "contains"
)

// Comparison compares one event field against a literal value.
type Comparison struct {
	Field string
	Op    Operator
	Value any
}

func (c Comparison) eval(event map[string]any) (bool, error) {
	got, present := lookup(event, c.Field)

	switch c.Op {
	case OpExists:
		return present && got != nil, nil
	case OpEquals:
		return present && looseEqual(got, c.Value), nil
	case OpNotEquals:
		// An absent field is "not equal" to any literal.
		return !present || !looseEqual(got, c.Value), nil
	case OpContains:
		if !present {
			return false, nil
		}
		return contains(got, c.Value), nil
	default:
		return false, &EvalError{Reason: fmt.Sprintf("unknown operator %q", c.Op)}
	}
}

// And matches when every child matches. An empty And matches.
type And struct {
	Children []Node
}

func (a And) eval(event map[string]any) (bool, error) {
	for _, c := range a.Children {
		ok, err := c.eval(event)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Or matches when any child matches. An empty Or does not match.
type Or struct {
	Children []Node
}

func (o Or) eval(event map[string]any) (bool, error) {
	for _, c := range o.Children {
		ok, err := c.eval(event)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not inverts its child.
type Not struct {
	Child Node
}

func (n Not) eval(event map[string]any) (bool, error) {
	ok, err := n.Child.eval(event)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// lookup resolves a dotted field path against the event. A leading "$."
// prefix is accepted and ignored so shorthand and mapping paths can use
// the same notation.
func lookup(event map[string]any, field string) (any, bool) {
	field = strings.TrimPrefix(field, "$.")
	var cur any = event
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// looseEqual compares a decoded event value to a predicate literal.
// JSON decoding yields float64 for all numbers, so numeric kinds
// compare by value.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// contains implements the contains operator: substring match for
// strings, element match for arrays.
func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(h, s)
	case []any:
		for _, el := range h {
			if looseEqual(el, needle) {
				return true
			}
		}
	}
	return false
}
