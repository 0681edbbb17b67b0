package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/voxgate/internal/domain"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Options{BaseURL: "http://x"}); err == nil {
		t.Error("missing API key accepted")
	}
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Error("missing base URL accepted")
	}
}

func TestChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if r.URL.Path != "/services/aigc/text-generation/generation" {
			t.Errorf("path = %q", r.URL.Path)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "qwen-plus" {
			t.Errorf("model = %v", req["model"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"text": "hello there"},
			"usage":  map[string]any{"input_tokens": 12, "output_tokens": 7},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := c.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
	}, ChatOptions{Model: "qwen-plus"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Content != "hello there" {
		t.Errorf("content = %q", result.Content)
	}
	if result.Usage.Input != 12 || result.Usage.Output != 7 {
		t.Errorf("usage = %+v", result.Usage)
	}
	if result.Model != "qwen-plus" {
		t.Errorf("model = %q", result.Model)
	}
}

func TestChatUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "Throttling.RateQuota",
			"message": "requests throttled",
		})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Chat(context.Background(), nil, ChatOptions{}); err == nil {
		t.Error("vendor error code did not fail the call")
	}
}

func TestChatHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Chat(context.Background(), nil, ChatOptions{}); err == nil {
		t.Error("non-200 status did not fail the call")
	}
}

func TestEmbeddingsOrdering(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Out-of-order indices must land in their slots.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{
				"embeddings": []map[string]any{
					{"embedding": []float64{0.3}, "text_index": 1},
					{"embedding": []float64{0.1}, "text_index": 0},
				},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	vectors, err := c.Embeddings(context.Background(), []string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("Embeddings: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.3 {
		t.Errorf("vectors = %v", vectors)
	}
}
