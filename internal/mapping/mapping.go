// Package mapping implements the template transform that shapes an
// incoming event into an action payload.
//
// A template is a plain JSON document. Objects whose sole key starts
// with "@" are directives; everything else passes through structurally.
// Directive paths always resolve against the ROOT input, no matter how
// deeply the directive is nested in the template, so a payload field can
// reach any part of the event.
//
// A path that resolves to nothing yields an undefined marker which is
// dropped from the enclosing object or array rather than serialized as
// null. Transform performs no I/O and never fails for a structurally
// valid template; only malformed directives produce errors.
package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Error reports a structurally invalid directive. Absent fields are not
// errors.
type Error struct {
	Directive string
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s directive: %s", e.Directive, e.Reason)
}

// undefined marks a path lookup that resolved to nothing. Parents drop
// it; it never appears in Transform output.
type undefined struct{}

// Transform applies template to root and returns the resulting JSON
// value. The result shares no structure with the template. A template
// that resolves to nothing at the top level returns nil.
func Transform(template any, root map[string]any) (any, error) {
	doc, err := json.Marshal(root)
	if err != nil {
		return nil, &Error{Directive: "root", Reason: "input is not JSON-serializable: " + err.Error()}
	}

	out, err := walk(template, doc)
	if err != nil {
		return nil, err
	}
	if _, ok := out.(undefined); ok {
		return nil, nil
	}
	return out, nil
}

func walk(template any, doc []byte) (any, error) {
	switch t := template.(type) {
	case map[string]any:
		if name, ok := directiveKey(t); ok {
			return evalDirective(name, t, doc)
		}
		out := make(map[string]any, len(t))
		for k, v := range t {
			tv, err := walk(v, doc)
			if err != nil {
				return nil, err
			}
			if _, drop := tv.(undefined); drop {
				continue
			}
			out[k] = tv
		}
		return out, nil

	case []any:
		out := make([]any, 0, len(t))
		for _, v := range t {
			tv, err := walk(v, doc)
			if err != nil {
				return nil, err
			}
			if _, drop := tv.(undefined); drop {
				continue
			}
			out = append(out, tv)
		}
		return out, nil

	default:
		// Scalars pass through untouched.
		return t, nil
	}
}

// directiveKey reports whether m carries a directive key. A directive
// must be the object's only key; mixed plain and "@" keys are rejected
// by evalDirective.
func directiveKey(m map[string]any) (string, bool) {
	for k := range m {
		if strings.HasPrefix(k, "@") {
			return k, true
		}
	}
	return "", false
}

func evalDirective(name string, m map[string]any, doc []byte) (any, error) {
	if len(m) != 1 {
		return nil, &Error{Directive: name, Reason: "directive must be the object's only key"}
	}
	arg := m[name]

	switch name {
	case "@path":
		return evalPath(arg, doc)
	case "@template":
		return evalTemplate(arg, doc)
	case "@literal":
		return arg, nil
	case "@if":
		return evalIf(arg, doc)
	default:
		return nil, &Error{Directive: name, Reason: "unknown directive"}
	}
}

// evalPath extracts a value from the root input. The argument is either
// a path string or {"path": ..., "default": ...} when a fallback literal
// is wanted for absent paths.
func evalPath(arg any, doc []byte) (any, error) {
	var path string
	var fallback any
	var hasFallback bool

	switch a := arg.(type) {
	case string:
		path = a
	case map[string]any:
		p, ok := a["path"].(string)
		if !ok {
			return nil, &Error{Directive: "@path", Reason: "object form requires a string path"}
		}
		path = p
		fallback, hasFallback = a["default"]
	default:
		return nil, &Error{Directive: "@path", Reason: fmt.Sprintf("argument must be a string or an object, got %T", arg)}
	}

	res := resolve(path, doc)
	if !res.Exists() {
		if hasFallback {
			return fallback, nil
		}
		return undefined{}, nil
	}
	return res.Value(), nil
}

// evalTemplate renders a string with {{path}} placeholders resolved
// against the root input. Absent placeholders render empty; a template
// whose every placeholder is absent and which contains nothing else
// resolves to undefined.
func evalTemplate(arg any, doc []byte) (any, error) {
	tmpl, ok := arg.(string)
	if !ok {
		return nil, &Error{Directive: "@template", Reason: fmt.Sprintf("argument must be a string, got %T", arg)}
	}

	var sb strings.Builder
	rest := tmpl
	anyResolved := false
	anyLiteral := false
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			if rest != "" {
				anyLiteral = true
			}
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return nil, &Error{Directive: "@template", Reason: "unterminated {{ placeholder"}
		}
		if start > 0 {
			anyLiteral = true
		}
		sb.WriteString(rest[:start])
		path := strings.TrimSpace(rest[start+2 : start+end])
		if res := resolve(path, doc); res.Exists() {
			sb.WriteString(res.String())
			anyResolved = true
		}
		rest = rest[start+end+2:]
	}

	if !anyResolved && !anyLiteral {
		return undefined{}, nil
	}
	return sb.String(), nil
}

// evalIf branches on whether an operand resolves to a defined, non-nil
// value: {"exists": <value-or-directive>, "then": ..., "else": ...}.
// An absent branch resolves to undefined.
func evalIf(arg any, doc []byte) (any, error) {
	m, ok := arg.(map[string]any)
	if !ok {
		return nil, &Error{Directive: "@if", Reason: fmt.Sprintf("argument must be an object, got %T", arg)}
	}
	operand, ok := m["exists"]
	if !ok {
		return nil, &Error{Directive: "@if", Reason: "requires an exists operand"}
	}

	cond, err := walk(operand, doc)
	if err != nil {
		return nil, err
	}
	_, isUndef := cond.(undefined)

	var branch any
	var has bool
	if !isUndef && cond != nil {
		branch, has = m["then"]
	} else {
		branch, has = m["else"]
	}
	if !has {
		return undefined{}, nil
	}
	return walk(branch, doc)
}

// resolve looks up a "$."-style path via gjson against the marshaled
// root input.
func resolve(path string, doc []byte) gjson.Result {
	path = strings.TrimPrefix(path, "$.")
	if path == "" {
		return gjson.Result{}
	}
	return gjson.GetBytes(doc, path)
}
