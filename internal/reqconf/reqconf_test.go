package reqconf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relayforge/destinations/internal/domain"
)

func header(kv ...string) http.Header {
	h := make(http.Header)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestCompose_LaterExtensionWins(t *testing.T) {
	exts := []Extension{
		func(in *domain.ExecuteInput) Config {
			return Config{
				BaseURL: "https://old.example.com",
				Timeout: time.Second,
				Headers: header("Authorization", "Bearer first", "X-Common", "yes"),
			}
		},
		func(in *domain.ExecuteInput) Config {
			return Config{
				BaseURL: "https://new.example.com",
				Headers: header("Authorization", "Bearer second"),
			}
		},
	}

	cfg := Compose(exts, &domain.ExecuteInput{})

	if cfg.BaseURL != "https://new.example.com" {
		t.Errorf("BaseURL = %q, want later extension's value", cfg.BaseURL)
	}
	if cfg.Timeout != time.Second {
		t.Errorf("Timeout = %v, want earlier value preserved", cfg.Timeout)
	}
	if got := cfg.Headers.Get("Authorization"); got != "Bearer second" {
		t.Errorf("Authorization = %q, want override", got)
	}
	if got := cfg.Headers.Get("X-Common"); got != "yes" {
		t.Errorf("X-Common = %q, want preserved", got)
	}
}

func TestCompose_ReadsExecuteInput(t *testing.T) {
	ext := func(in *domain.ExecuteInput) Config {
		key, _ := in.Settings["apiKey"].(string)
		return Config{Headers: header("Authorization", "Bearer "+key)}
	}

	cfg := Compose([]Extension{ext}, &domain.ExecuteInput{
		Settings: domain.Settings{"apiKey": "s3cr3t"},
	})
	if got := cfg.Headers.Get("Authorization"); got != "Bearer s3cr3t" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestRequest_Do(t *testing.T) {
	var gotAuth, gotPath, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req := New(Config{
		BaseURL: srv.URL,
		Headers: header("Authorization", "Bearer token"),
	}, srv.Client())

	resp, err := req.Post(context.Background(), "/track", map[string]any{"eventName": "Signed Up"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/track" {
		t.Errorf("path = %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	var body map[string]any
	if err := resp.JSON(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("body = %#v", body)
	}
}

func TestRequest_NonSuccessStatusIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	req := New(Config{BaseURL: srv.URL}, srv.Client())
	resp, err := req.Get(context.Background(), "/x")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindRequest {
		t.Errorf("expected request error, got %v", err)
	}
	if resp == nil || resp.Status != http.StatusForbidden {
		t.Errorf("expected response alongside error, got %#v", resp)
	}
}

func TestRequest_TransportFailureIsRequestError(t *testing.T) {
	req := New(Config{BaseURL: "http://127.0.0.1:1"}, &http.Client{Timeout: time.Second})
	_, err := req.Get(context.Background(), "/x")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindRequest {
		t.Errorf("expected request error, got %v", err)
	}
}

func TestRequest_AbsoluteURLBypassesBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"pong"`))
	}))
	defer srv.Close()

	req := New(Config{BaseURL: "https://unused.example.com"}, srv.Client())
	resp, err := req.Get(context.Background(), srv.URL+"/ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Value() != "pong" {
		t.Errorf("body = %#v", resp.Value())
	}
}
