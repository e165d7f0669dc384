package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"deckforge/config"
)

// AnthropicChatModel implements the eino ChatModel interface over the
// Anthropic messages API. Only plain text generation is wired.
type AnthropicChatModel struct {
	providerID string
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	client     *http.Client
}

func NewAnthropicChatModel(cfg config.ProviderConfig) *AnthropicChatModel {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicChatModel{
		providerID: cfg.ID,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		client:     &http.Client{Timeout: 300 * time.Second},
	}
}

// BindTools satisfies the ChatModel interface; tool calling is not
// used by this client.
func (m *AnthropicChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	reqBody := map[string]interface{}{
		"model":      m.model,
		"max_tokens": m.maxTokens,
	}

	var messages []map[string]interface{}
	var systemPrompt string
	for _, msg := range input {
		if msg.Role == schema.System {
			systemPrompt += msg.Content + "\n"
			continue
		}
		role := "user"
		if msg.Role == schema.Assistant {
			role = "assistant"
		}
		messages = append(messages, map[string]interface{}{
			"role":    role,
			"content": msg.Content,
		})
	}
	if systemPrompt != "" {
		reqBody["system"] = strings.TrimSpace(systemPrompt)
	}
	reqBody["messages"] = messages

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	fullURL := "https://api.anthropic.com/v1/messages"
	if m.baseURL != "" {
		fullURL = strings.TrimSuffix(m.baseURL, "/") + "/v1/messages"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, FromHTTPStatus(m.providerID, resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}

	responseMsg := &schema.Message{
		Role:    schema.Assistant,
		Content: "",
	}
	for _, block := range result.Content {
		if block.Type == "text" {
			responseMsg.Content += block.Text
		}
	}
	return responseMsg, nil
}

func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported yet")
}

// AnthropicProvider serves text rewriting only; image requests are
// routed past it by the gateway's capability check.
type AnthropicProvider struct {
	id   string
	chat model.ChatModel
}

func NewAnthropicProvider(cfg config.ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		id:   cfg.ID,
		chat: NewAnthropicChatModel(cfg),
	}
}

func (p *AnthropicProvider) ID() string {
	return p.id
}

func (p *AnthropicProvider) SupportsTextRewrite() bool {
	return true
}

func (p *AnthropicProvider) SupportsImageGeneration() bool {
	return false
}

func (p *AnthropicProvider) RewriteText(ctx context.Context, req TextRequest) (string, error) {
	resp, err := p.chat.Generate(ctx, chatMessages(req))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (p *AnthropicProvider) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, string, error) {
	return nil, "", PermanentError(p.id, fmt.Errorf("image generation not supported"))
}
