package predicate

import (
	"encoding/json"
	"fmt"
)

// Parse decodes a predicate from its boundary representation: a
// shorthand string, an already-decoded typed tree (map), or raw JSON
// bytes holding either. Anything else fails closed.
func Parse(raw any) (Node, error) {
	switch v := raw.(type) {
	case string:
		return ParseString(v)
	case map[string]any:
		return decodeTree(v)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil, &ParseError{Input: string(v), Reason: err.Error()}
		}
		return Parse(decoded)
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("predicate must be a string or an object, got %T", raw)}
	}
}

// decodeTree converts a {type, children}-style tree into a Node.
func decodeTree(m map[string]any) (Node, error) {
	kind, _ := m["type"].(string)
	switch kind {
	case "and", "or":
		rawChildren, ok := m["children"].([]any)
		if !ok || len(rawChildren) == 0 {
			return nil, &ParseError{Reason: kind + " node requires a non-empty children array"}
		}
		children := make([]Node, len(rawChildren))
		for i, rc := range rawChildren {
			cm, ok := rc.(map[string]any)
			if !ok {
				return nil, &ParseError{Reason: fmt.Sprintf("child %d of %s node is not an object", i, kind)}
			}
			child, err := decodeTree(cm)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		if kind == "and" {
			return And{Children: children}, nil
		}
		return Or{Children: children}, nil

	case "not":
		cm, ok := m["child"].(map[string]any)
		if !ok {
			return nil, &ParseError{Reason: "not node requires a child object"}
		}
		child, err := decodeTree(cm)
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil

	case string(OpEquals), string(OpNotEquals), string(OpContains), string(OpExists):
		field, ok := m["field"].(string)
		if !ok || field == "" {
			return nil, &ParseError{Reason: kind + " node requires a field"}
		}
		cmp := Comparison{Field: field, Op: Operator(kind)}
		if kind != string(OpExists) {
			value, ok := m["value"]
			if !ok {
				return nil, &ParseError{Reason: kind + " node requires a value"}
			}
			cmp.Value = value
		}
		return cmp, nil

	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unknown predicate node type %q", kind)}
	}
}
