package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Briefcast/internal/config"
	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

func reply(text string) []byte {
	payload := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func newTestClient(t *testing.T, handler http.HandlerFunc, models ...string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.GenerationConfig{
		APIKey:   "key",
		Endpoint: server.URL,
		Models:   models,
	}, nil)
}

func TestGenerateParsesReply(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody generateBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write(reply("generated text"))
	}, "model-a")

	text, err := c.Generate(context.Background(), ports.GenerateRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "generated text" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotPath != "/models/model-a:generateContent" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Fatalf("prompt not carried: %+v", gotBody)
	}
	if gotBody.Config != nil {
		t.Fatal("unstructured requests must not set generationConfig")
	}
}

func TestGenerateStructuredSetsMIMEType(t *testing.T) {
	t.Parallel()

	var gotBody generateBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write(reply(`["a"]`))
	}, "model-a")

	if _, err := c.Generate(context.Background(), ports.GenerateRequest{Prompt: "p", Structured: true}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if gotBody.Config == nil || gotBody.Config.ResponseMIMEType != "application/json" {
		t.Fatalf("structured flag not translated: %+v", gotBody.Config)
	}
}

func TestGenerateFallsBackAndCachesWorkingModel(t *testing.T) {
	t.Parallel()

	calls := map[string]int{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/models/"), ":generateContent")
		calls[model]++
		if model == "broken" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write(reply("ok"))
	}, "broken", "healthy")

	for i := 0; i < 2; i++ {
		if _, err := c.Generate(context.Background(), ports.GenerateRequest{Prompt: "p"}); err != nil {
			t.Fatalf("Generate #%d returned error: %v", i, err)
		}
	}

	// The broken candidate is tried once; after that the healthy model is preferred.
	if calls["broken"] != 1 {
		t.Fatalf("broken model tried %d times, want 1", calls["broken"])
	}
	if calls["healthy"] != 2 {
		t.Fatalf("healthy model called %d times, want 2", calls["healthy"])
	}
}

func TestGenerateRateLimit(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}, "model-a", "model-b")

	_, err := c.Generate(context.Background(), ports.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// Quota is account-wide: no model hopping on a rate limit.
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestGenerateResourceExhaustedBodyIsRateLimit(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"status": "RESOURCE_EXHAUSTED"}}`, http.StatusForbidden)
	}, "model-a")

	if _, err := c.Generate(context.Background(), ports.GenerateRequest{Prompt: "p"}); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGenerateEmptyReplyFailsOver(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "empty") {
			_, _ = w.Write([]byte(`{"candidates": []}`))
			return
		}
		_, _ = w.Write(reply("recovered"))
	}, "empty", "full")

	text, err := c.Generate(context.Background(), ports.GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("expected fallback reply, got %q", text)
	}
}
