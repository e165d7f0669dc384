package provider

import (
	"bytes"
	"context"
	"encoding/base64"
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

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// geminiPost sends one generateContent request and returns the raw
// response body, converting HTTP failures into typed provider errors.
func geminiPost(ctx context.Context, client *http.Client, providerID, baseURL, modelName, apiKey string, reqBody map[string]interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	fullURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", baseURL, modelName, apiKey)

	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, FromHTTPStatus(providerID, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// GeminiChatModel implements the eino ChatModel interface over the
// Gemini generateContent API.
type GeminiChatModel struct {
	providerID string
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	client     *http.Client
}

func NewGeminiChatModel(cfg config.ProviderConfig) *GeminiChatModel {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &GeminiChatModel{
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
func (m *GeminiChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var contents []map[string]interface{}
	var systemInstruction string
	for _, msg := range input {
		if msg.Role == schema.System {
			systemInstruction += msg.Content + "\n"
			continue
		}
		role := "user"
		if msg.Role == schema.Assistant {
			role = "model"
		}
		contents = append(contents, map[string]interface{}{
			"role":  role,
			"parts": []interface{}{map[string]interface{}{"text": msg.Content}},
		})
	}

	reqBody := map[string]interface{}{
		"contents": contents,
		"generationConfig": map[string]interface{}{
			"maxOutputTokens": m.maxTokens,
		},
	}
	if systemInstruction != "" {
		reqBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{
				{"text": strings.TrimSpace(systemInstruction)},
			},
		}
	}

	respBody, err := geminiPost(ctx, m.client, m.providerID, m.baseURL, m.model, m.apiKey, reqBody)
	if err != nil {
		return nil, err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text,omitempty"`
				} `json:"parts"`
				Role string `json:"role"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		Error *geminiError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if result.Error != nil {
		return nil, FromHTTPStatus(m.providerID, result.Error.Code, result.Error.Message)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	responseMsg := &schema.Message{
		Role:    schema.Assistant,
		Content: "",
	}
	for _, part := range result.Candidates[0].Content.Parts {
		responseMsg.Content += part.Text
	}
	return responseMsg, nil
}

func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported yet for Gemini")
}

// GeminiProvider serves text rewriting always and image generation
// when an image-capable model is configured.
type GeminiProvider struct {
	id         string
	apiKey     string
	baseURL    string
	imageModel string
	chat       model.ChatModel
	client     *http.Client
}

func NewGeminiProvider(cfg config.ProviderConfig) *GeminiProvider {
	return &GeminiProvider{
		id:         cfg.ID,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		imageModel: cfg.ImageModel,
		chat:       NewGeminiChatModel(cfg),
		client:     &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *GeminiProvider) ID() string {
	return p.id
}

func (p *GeminiProvider) SupportsTextRewrite() bool {
	return true
}

func (p *GeminiProvider) SupportsImageGeneration() bool {
	return p.imageModel != ""
}

func (p *GeminiProvider) RewriteText(ctx context.Context, req TextRequest) (string, error) {
	resp, err := p.chat.Generate(ctx, chatMessages(req))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (p *GeminiProvider) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, string, error) {
	if p.imageModel == "" {
		return nil, "", PermanentError(p.id, fmt.Errorf("no image model configured"))
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []interface{}{map[string]interface{}{"text": req.Prompt}},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}

	respBody, err := geminiPost(ctx, p.client, p.id, p.baseURL, p.imageModel, p.apiKey, reqBody)
	if err != nil {
		return nil, "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text,omitempty"`
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData,omitempty"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *geminiError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, "", fmt.Errorf("failed to decode response: %v", err)
	}
	if result.Error != nil {
		return nil, "", FromHTTPStatus(p.id, result.Error.Code, result.Error.Message)
	}

	for _, candidate := range result.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, "", PermanentError(p.id, fmt.Errorf("failed to decode image payload: %v", err))
			}
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return data, mimeType, nil
		}
	}
	return nil, "", PermanentError(p.id, fmt.Errorf("no image data in Gemini response"))
}
