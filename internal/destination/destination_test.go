package destination

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/relayforge/destinations/internal/cache"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/fieldschema"
	"github.com/relayforge/destinations/internal/reqconf"
)

func testDefinition() Definition {
	return Definition{
		Slug:        "acme",
		Title:       "Acme",
		Description: "Test partner.",
		SettingsFields: []fieldschema.Field{
			{Key: "endpoint", Type: fieldschema.TypeString, Required: true},
			{Key: "apiKey", Type: fieldschema.TypePassword, Required: true},
		},
		Extensions: []reqconf.Extension{
			func(in *domain.ExecuteInput) reqconf.Config {
				endpoint, _ := in.Settings["endpoint"].(string)
				key, _ := in.Settings["apiKey"].(string)
				h := make(http.Header)
				h.Set("Authorization", "Bearer "+key)
				return reqconf.Config{BaseURL: endpoint, Headers: h}
			},
		},
		Actions: map[string]ActionDefinition{
			"track": {
				Title: "Track",
				Fields: []fieldschema.Field{
					{Key: "eventName", Type: fieldschema.TypeString, Required: true},
				},
				Perform: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
					resp, err := req.Post(ctx, "/track", in.Payload)
					if err != nil {
						return nil, err
					}
					return resp.Value(), nil
				},
			},
			"identify": {
				Title: "Identify",
				Perform: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
					return map[string]any{"ok": true}, nil
				},
			},
		},
	}
}

func TestBuildRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{
			name:   "missing slug",
			mutate: func(d *Definition) { d.Slug = "" },
			want:   "requires a slug",
		},
		{
			name:   "no actions",
			mutate: func(d *Definition) { d.Actions = nil },
			want:   "no actions",
		},
		{
			name: "missing perform",
			mutate: func(d *Definition) {
				d.Actions = map[string]ActionDefinition{"broken": {Title: "Broken"}}
			},
			want: "missing perform",
		},
		{
			name: "cached lookup without cache",
			mutate: func(d *Definition) {
				act := d.Actions["track"]
				act.Cached = []CachedLookup{{
					Name: "lookup",
					TTL:  time.Minute,
					Key:  func(in *domain.ExecuteInput) string { return "k" },
					Value: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
						return nil, nil
					},
					ResultField: "resolved",
				}}
				d.Actions["track"] = act
			},
			want: "no cache was supplied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testDefinition()
			tt.mutate(&def)
			_, err := Build(def, BuildOptions{})
			if err == nil {
				t.Fatal("expected build error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestBuildAccessors(t *testing.T) {
	dest, err := Build(testDefinition(), BuildOptions{Cache: cache.New(16)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if dest.Slug() != "acme" || dest.Title() != "Acme" {
		t.Fatalf("unexpected identity: %s / %s", dest.Slug(), dest.Title())
	}
	if got := dest.PrivateKeys(); !reflect.DeepEqual(got, []string{"apiKey"}) {
		t.Fatalf("private keys = %v", got)
	}
	if got := dest.ActionSlugs(); !reflect.DeepEqual(got, []string{"identify", "track"}) {
		t.Fatalf("action slugs = %v", got)
	}
	if _, ok := dest.Action("track"); !ok {
		t.Fatal("track action missing")
	}
	if _, ok := dest.Action("ghost"); ok {
		t.Fatal("ghost action resolved")
	}

	schema, ok := dest.ActionSchema("track")
	if !ok {
		t.Fatal("track schema missing")
	}
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["eventName"]; !ok {
		t.Fatalf("schema properties missing eventName: %v", schema)
	}
}

func TestValidateSettingsCollectsAllViolations(t *testing.T) {
	dest, err := Build(testDefinition(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	err = dest.ValidateSettings(domain.Settings{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected domain error, got %T", err)
	}
	if derr.Kind != domain.ErrorKindValidation {
		t.Fatalf("kind = %s", derr.Kind)
	}
	// Both required settings are absent.
	if len(derr.Violations) != 2 {
		t.Fatalf("violations = %v", derr.Violations)
	}

	if err := dest.ValidateSettings(domain.Settings{"endpoint": "https://x.test", "apiKey": "k"}); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
}

func TestProbe(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	def := testDefinition()
	def.TestAuthentication = func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
		_, err := req.Get(ctx, "/me")
		return nil, err
	}
	dest, err := Build(def, BuildOptions{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	in := &domain.ExecuteInput{Settings: domain.Settings{"endpoint": srv.URL, "apiKey": "s3cr3t"}}
	declared, err := dest.Probe(context.Background(), in)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !declared {
		t.Fatal("probe reported undeclared")
	}
	if gotAuth != "Bearer s3cr3t" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestProbeUndeclared(t *testing.T) {
	dest, err := Build(testDefinition(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	declared, err := dest.Probe(context.Background(), &domain.ExecuteInput{Settings: domain.Settings{}})
	if declared || err != nil {
		t.Fatalf("declared=%v err=%v, want false/nil", declared, err)
	}
}

func TestAutocomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"C1","name":"general"}]}`))
	}))
	defer srv.Close()

	def := testDefinition()
	act := def.Actions["track"]
	act.Autocomplete = map[string]AutocompleteFunc{
		"channel": func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) ([]AutocompleteItem, error) {
			resp, err := req.Get(ctx, "/channels")
			if err != nil {
				return nil, err
			}
			var body struct {
				Items []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"items"`
			}
			if err := resp.JSON(&body); err != nil {
				return nil, err
			}
			items := make([]AutocompleteItem, 0, len(body.Items))
			for _, it := range body.Items {
				items = append(items, AutocompleteItem{Label: it.Name, Value: it.ID})
			}
			return items, nil
		},
	}
	def.Actions["track"] = act

	dest, err := Build(def, BuildOptions{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	in := &domain.ExecuteInput{Settings: domain.Settings{"endpoint": srv.URL, "apiKey": "k"}}
	items, err := dest.Autocomplete(context.Background(), "track", "channel", in)
	if err != nil {
		t.Fatalf("autocomplete: %v", err)
	}
	want := []AutocompleteItem{{Label: "general", Value: "C1"}}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("items = %v, want %v", items, want)
	}

	_, err = dest.Autocomplete(context.Background(), "ghost", "channel", in)
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindUnknownAction {
		t.Fatalf("unknown action error = %v", err)
	}
	if _, err := dest.Autocomplete(context.Background(), "track", "nope", in); err == nil {
		t.Fatal("expected error for field without autocomplete")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	zebra, err := Build(func() Definition { d := testDefinition(); d.Slug = "zebra"; return d }(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	acme, err := Build(testDefinition(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := reg.Register(zebra); err != nil {
		t.Fatalf("register zebra: %v", err)
	}
	if err := reg.Register(acme); err != nil {
		t.Fatalf("register acme: %v", err)
	}
	if err := reg.Register(acme); err == nil {
		t.Fatal("duplicate registration accepted")
	}

	if _, ok := reg.Lookup("acme"); !ok {
		t.Fatal("acme not found")
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("missing slug resolved")
	}
	if got := reg.Slugs(); !reflect.DeepEqual(got, []string{"acme", "zebra"}) {
		t.Fatalf("slugs = %v", got)
	}
}
