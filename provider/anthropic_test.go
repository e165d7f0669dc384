package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"

	"deckforge/config"
)

func TestAnthropicGenerateBuildsMessagesRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("anthropic-version header missing")
		}

		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody["model"] != "claude-sonnet" {
			t.Errorf("model = %v", reqBody["model"])
		}
		if reqBody["system"] != "You polish slides." {
			t.Errorf("system = %v", reqBody["system"])
		}
		if reqBody["max_tokens"] != float64(4096) {
			t.Errorf("max_tokens = %v, want default 4096", reqBody["max_tokens"])
		}

		msgs := reqBody["messages"].([]interface{})
		if len(msgs) != 2 {
			t.Fatalf("got %d messages, want 2", len(msgs))
		}
		first := msgs[0].(map[string]interface{})
		if first["role"] != "user" || first["content"] != "Rewrite this." {
			t.Errorf("message 0 = %v", first)
		}
		second := msgs[1].(map[string]interface{})
		if second["role"] != "assistant" {
			t.Errorf("message 1 role = %v, want assistant", second["role"])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"role": "assistant",
			"content": []map[string]interface{}{
				{"type": "text", "text": "First part. "},
				{"type": "thinking", "text": "ignored"},
				{"type": "text", "text": "Second part."},
			},
		})
	}))
	defer server.Close()

	m := NewAnthropicChatModel(config.ProviderConfig{
		ID:      "anthropic",
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-sonnet",
	})
	resp, err := m.Generate(context.Background(), []*schema.Message{
		{Role: schema.System, Content: "You polish slides."},
		{Role: schema.User, Content: "Rewrite this."},
		{Role: schema.Assistant, Content: "Earlier draft."},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// Only text blocks contribute to the reply.
	if resp.Content != "First part. Second part." {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestAnthropicGenerateMapsHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, KindQuota},
		{"server error", http.StatusInternalServerError, KindTransient},
		{"bad key", http.StatusUnauthorized, KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			m := NewAnthropicChatModel(config.ProviderConfig{ID: "anthropic", APIKey: "k", BaseURL: server.URL, Model: "claude-sonnet"})
			_, err := m.Generate(context.Background(), []*schema.Message{{Role: schema.User, Content: "hi"}})
			if err == nil {
				t.Fatal("expected an error")
			}
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("error is %T, want *ProviderError", err)
			}
			if pe.Kind != tt.want {
				t.Errorf("kind = %s, want %s", pe.Kind, tt.want)
			}
			if pe.ProviderID != "anthropic" {
				t.Errorf("provider id = %s", pe.ProviderID)
			}
		})
	}
}

func TestAnthropicProviderCapabilities(t *testing.T) {
	p := NewAnthropicProvider(config.ProviderConfig{ID: "anthropic", APIKey: "k"})
	if !p.SupportsTextRewrite() {
		t.Error("text rewrite should be supported")
	}
	if p.SupportsImageGeneration() {
		t.Error("image generation should not be advertised")
	}
	_, _, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "a robot"})
	if KindOf(err) != KindPermanent {
		t.Errorf("image call should fail permanently, got %v", err)
	}
}
