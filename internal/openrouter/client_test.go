package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBuildPayload(t *testing.T) {
	body, err := buildPayload(ChatRequest{
		Model: "anthropic/claude-3-opus",
		Messages: []Message{
			{Role: "system", Content: "You are concise"},
			{Role: "user", Content: "hello"},
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["model"] != "anthropic/claude-3-opus" {
		t.Fatalf("unexpected model %#v", payload["model"])
	}
	if _, ok := payload["messages"]; !ok {
		t.Fatal("messages missing in payload")
	}
	if payload["max_tokens"] != float64(2000) {
		t.Fatalf("unexpected max_tokens %#v", payload["max_tokens"])
	}
}

func TestBuildEndpointURL(t *testing.T) {
	c := New(Config{BaseURL: "https://openrouter.ai/api/v1"})
	endpoint, err := c.buildEndpointURL()
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}
	if endpoint != "https://openrouter.ai/api/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}
}

func TestChatParsesContentAndModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`{"model":"deepseek/deepseek-r1","choices":[{"message":{"content":"enhanced text"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.Chat(context.Background(), "test-key", ChatRequest{
		Model:    "deepseek/deepseek-r1-0528-qwen3-8b:free",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Text != "enhanced text" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.ModelUsed != "deepseek/deepseek-r1" {
		t.Fatalf("expected model from response, got %q", resp.ModelUsed)
	}
}

func TestChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), "k", ChatRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
}

func TestChatMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), "k", ChatRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatal("malformed 2xx response must not be an APIError")
	}
}
