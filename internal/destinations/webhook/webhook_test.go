package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/relayforge/destinations/internal/cache"
	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/domain"
)

type fakeEndpoint struct {
	srv          *httptest.Server
	received     []map[string]any
	channelHits  int
	lastAuth     string
	lastSendPath string
}

func newFakeEndpoint(t *testing.T) *fakeEndpoint {
	t.Helper()
	f := &fakeEndpoint{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		switch {
		case r.URL.Path == "/ping":
			w.Write([]byte(`{"ok":true}`))
		case r.URL.Path == "/channels" && r.URL.Query().Get("name") != "":
			f.channelHits++
			w.Write([]byte(`{"id":"C42"}`))
		case r.URL.Path == "/channels":
			w.Write([]byte(`{"channels":[{"id":"C1","name":"general"},{"id":"C2","name":"alerts"}]}`))
		default:
			f.lastSendPath = r.URL.Path
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			f.received = append(f.received, body)
			w.Write([]byte(`{"delivered":true}`))
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func build(t *testing.T, f *fakeEndpoint) (*destination.Destination, domain.Settings) {
	t.Helper()
	dest, err := destination.Build(Definition(), destination.BuildOptions{
		Cache:      cache.New(16),
		HTTPClient: f.srv.Client(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return dest, domain.Settings{"endpoint": f.srv.URL, "apiKey": "s3cr3t"}
}

func TestSendDeliversPayload(t *testing.T) {
	f := newFakeEndpoint(t)
	dest, settings := build(t, f)

	act, ok := dest.Action("send")
	if !ok {
		t.Fatal("send action missing")
	}
	in := &domain.ExecuteInput{
		Payload:  map[string]any{"eventName": "Signed Up"},
		Settings: settings,
	}
	results, err := act.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no step results")
	}
	if len(f.received) != 1 || f.received[0]["eventName"] != "Signed Up" {
		t.Fatalf("endpoint received %v", f.received)
	}
	if f.lastAuth != "Bearer s3cr3t" {
		t.Fatalf("auth header = %q", f.lastAuth)
	}
}

func TestSendRejectsMissingEventName(t *testing.T) {
	f := newFakeEndpoint(t)
	dest, settings := build(t, f)

	act, _ := dest.Action("send")
	in := &domain.ExecuteInput{
		Payload:  map[string]any{"properties": map[string]any{"plan": "pro"}},
		Settings: settings,
	}
	_, err := act.Execute(context.Background(), in)
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindValidation {
		t.Fatalf("error = %v", err)
	}
	if len(f.received) != 0 {
		t.Fatalf("endpoint invoked despite validation failure: %v", f.received)
	}
}

func TestSendToChannelResolvesOnce(t *testing.T) {
	f := newFakeEndpoint(t)
	dest, settings := build(t, f)

	act, ok := dest.Action("sendToChannel")
	if !ok {
		t.Fatal("sendToChannel action missing")
	}

	for i := 0; i < 3; i++ {
		in := &domain.ExecuteInput{
			Payload:  map[string]any{"eventName": "Signed Up", "channel": "general"},
			Settings: settings,
		}
		if _, err := act.Execute(context.Background(), in); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}

	// The channel ID resolves through the cache, so the lookup endpoint
	// is hit once for three deliveries.
	if f.channelHits != 1 {
		t.Fatalf("channel lookups = %d", f.channelHits)
	}
	if len(f.received) != 3 {
		t.Fatalf("deliveries = %d", len(f.received))
	}
	if f.lastSendPath != "/channels/send" {
		t.Fatalf("send path = %q", f.lastSendPath)
	}
	if f.received[0]["channelId"] != "C42" {
		t.Fatalf("delivery body = %v", f.received[0])
	}
}

func TestChannelAutocomplete(t *testing.T) {
	f := newFakeEndpoint(t)
	dest, settings := build(t, f)

	items, err := dest.Autocomplete(context.Background(), "sendToChannel", "channel", &domain.ExecuteInput{Settings: settings})
	if err != nil {
		t.Fatalf("autocomplete: %v", err)
	}
	want := []destination.AutocompleteItem{
		{Label: "general", Value: "C1"},
		{Label: "alerts", Value: "C2"},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("items = %v", items)
	}
}

func TestProbePings(t *testing.T) {
	f := newFakeEndpoint(t)
	dest, settings := build(t, f)

	declared, err := dest.Probe(context.Background(), &domain.ExecuteInput{Settings: settings})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !declared {
		t.Fatal("probe reported undeclared")
	}
	if f.lastAuth != "Bearer s3cr3t" {
		t.Fatalf("auth header = %q", f.lastAuth)
	}
}

func TestPrivateKeys(t *testing.T) {
	f := newFakeEndpoint(t)
	dest, _ := build(t, f)

	if got := dest.PrivateKeys(); !reflect.DeepEqual(got, []string{"apiKey"}) {
		t.Fatalf("private keys = %v", got)
	}
}
