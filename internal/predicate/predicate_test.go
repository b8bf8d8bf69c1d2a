package predicate

import (
	"testing"
)

func mustParse(t *testing.T, raw any) Node {
	t.Helper()
	n, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return n
}

func TestParseString_Equals(t *testing.T) {
	n := mustParse(t, `type = "track"`)

	event := map[string]any{"type": "track", "event": "Signed Up"}
	ok, err := Matches(n, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected match for type = track")
	}

	ok, err = Matches(n, map[string]any{"type": "page"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no match for type = page")
	}
}

func TestParseString_MissingFieldIsNotAnError(t *testing.T) {
	cases := []string{
		`properties.plan = "pro"`,
		`properties.plan exists`,
		`properties.plan contains "pro"`,
	}
	for _, expr := range cases {
		n := mustParse(t, expr)
		ok, err := Matches(n, map[string]any{"type": "track"})
		if err != nil {
			t.Errorf("%s: expected no error for absent field, got %v", expr, err)
		}
		if ok {
			t.Errorf("%s: expected no match for absent field", expr)
		}
	}
}

func TestParseString_NotEqualsAbsentField(t *testing.T) {
	n := mustParse(t, `type != "track"`)
	ok, err := Matches(n, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("absent field should satisfy !=")
	}
}

func TestParseString_AndOrPrecedence(t *testing.T) {
	// and binds tighter: a or (b and c)
	n := mustParse(t, `type = "page" or type = "track" and event = "Signed Up"`)

	ok, _ := Matches(n, map[string]any{"type": "track", "event": "Signed Up"})
	if !ok {
		t.Error("expected match for track + Signed Up")
	}
	ok, _ = Matches(n, map[string]any{"type": "page"})
	if !ok {
		t.Error("expected match for page")
	}
	ok, _ = Matches(n, map[string]any{"type": "track", "event": "Checkout"})
	if ok {
		t.Error("expected no match for track + Checkout")
	}
}

func TestParseString_Grouping(t *testing.T) {
	n := mustParse(t, `(type = "page" or type = "track") and event exists`)

	ok, _ := Matches(n, map[string]any{"type": "page", "event": "Home"})
	if !ok {
		t.Error("expected match")
	}
	ok, _ = Matches(n, map[string]any{"type": "page"})
	if ok {
		t.Error("expected no match without event")
	}
}

func TestParseString_Not(t *testing.T) {
	n := mustParse(t, `!(type = "screen")`)
	ok, _ := Matches(n, map[string]any{"type": "track"})
	if !ok {
		t.Error("expected match for negated comparison")
	}
}

func TestParseString_NumberAndBoolLiterals(t *testing.T) {
	n := mustParse(t, `properties.count = 3 and properties.active = true`)
	ok, _ := Matches(n, map[string]any{
		"properties": map[string]any{"count": float64(3), "active": true},
	})
	if !ok {
		t.Error("expected match on number and bool literals")
	}
}

func TestParseString_Contains(t *testing.T) {
	n := mustParse(t, `event contains "Sign"`)
	ok, _ := Matches(n, map[string]any{"event": "Signed Up"})
	if !ok {
		t.Error("expected substring match")
	}

	n = mustParse(t, `properties.tags contains "beta"`)
	ok, _ = Matches(n, map[string]any{
		"properties": map[string]any{"tags": []any{"alpha", "beta"}},
	})
	if !ok {
		t.Error("expected array element match")
	}
}

func TestParseString_FailsClosed(t *testing.T) {
	malformed := []string{
		``,
		`type =`,
		`= "track"`,
		`type ~ "track"`,
		`(type = "track"`,
		`type = track`,
		`type = "track" banana`,
	}
	for _, expr := range malformed {
		if _, err := ParseString(expr); err == nil {
			t.Errorf("expected parse error for %q", expr)
		}
	}
}

func TestDecodeTree(t *testing.T) {
	raw := map[string]any{
		"type": "and",
		"children": []any{
			map[string]any{"type": "equals", "field": "type", "value": "track"},
			map[string]any{
				"type":  "not",
				"child": map[string]any{"type": "equals", "field": "event", "value": "Deleted"},
			},
		},
	}
	n := mustParse(t, raw)

	ok, err := Matches(n, map[string]any{"type": "track", "event": "Signed Up"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected tree match")
	}

	ok, _ = Matches(n, map[string]any{"type": "track", "event": "Deleted"})
	if ok {
		t.Error("expected not-child to reject")
	}
}

func TestDecodeTree_Malformed(t *testing.T) {
	malformed := []map[string]any{
		{"type": "banana"},
		{"type": "and"},
		{"type": "and", "children": []any{}},
		{"type": "equals", "value": "x"},
		{"type": "equals", "field": "type"},
		{"type": "not"},
	}
	for i, raw := range malformed {
		if _, err := Parse(raw); err == nil {
			t.Errorf("case %d: expected parse error", i)
		}
	}
}

func TestParse_RejectsOtherShapes(t *testing.T) {
	if _, err := Parse(42); err == nil {
		t.Error("expected error for numeric predicate")
	}
	if _, err := Parse(nil); err == nil {
		t.Error("expected error for nil predicate")
	}
}

func TestMatches_DollarPrefixedPath(t *testing.T) {
	n := mustParse(t, `$.type = "track"`)
	ok, _ := Matches(n, map[string]any{"type": "track"})
	if !ok {
		t.Error("expected $.-prefixed path to resolve")
	}
}
