package instruct

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GenerateReturnsInstruction(t *testing.T) {
	t.Parallel()
	var gotReq chatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  Please write the unit tests next.  "}},
			},
		})
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o"}, nil)
	out, err := c.Generate(context.Background(), "Current turn:\nUser request: build the parser", "agent finished", "response_completed")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out != "Please write the unit tests next." {
		t.Errorf("unexpected instruction: %q", out)
	}

	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("unexpected message layout: %+v", gotReq.Messages)
	}
	user := gotReq.Messages[1].Content
	if !strings.Contains(user, "build the parser") || !strings.Contains(user, "agent finished") {
		t.Errorf("prompt missing context or reason: %q", user)
	}
}

func TestClient_GenerateRequiresAPIKey(t *testing.T) {
	t.Parallel()
	c := NewClient(Config{BaseURL: "http://localhost:1"}, nil)

	if _, err := c.Generate(context.Background(), "ctx", "reason", "kind"); err == nil {
		t.Error("expected an error without an API key")
	}
}

func TestClient_GenerateSurfacesHTTPError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	_, err := c.Generate(context.Background(), "ctx", "reason", "kind")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected a 429 error, got %v", err)
	}
}

func TestClient_GenerateSurfacesAPIErrorBody(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	_, err := c.Generate(context.Background(), "ctx", "reason", "kind")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("expected the API error message, got %v", err)
	}
}

func TestClient_GenerateEmptyChoices(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	if _, err := c.Generate(context.Background(), "ctx", "reason", "kind"); err == nil {
		t.Error("expected an error for empty choices")
	}
}

func TestBuildPrompt_KindSteering(t *testing.T) {
	t.Parallel()

	p := buildPrompt("history", "stalled 31s", "content_timeout")
	if !strings.Contains(p, "stalled 31s") || !strings.Contains(p, "stuck") {
		t.Errorf("timeout prompt missing steering: %q", p)
	}
	p = buildPrompt("history", "forced", "force_progress")
	if !strings.Contains(p, "no progress") {
		t.Errorf("forced prompt missing steering: %q", p)
	}
}
