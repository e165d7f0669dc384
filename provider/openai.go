package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	goopenai "github.com/meguminnnnnnnnn/go-openai"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"deckforge/config"
)

// OpenAIProvider serves both operations: text rewriting through the
// eino chat model abstraction and image generation through the
// official SDK.
type OpenAIProvider struct {
	id         string
	chat       model.ChatModel
	images     openai.Client
	imageModel string
}

func NewOpenAIProvider(ctx context.Context, cfg config.ProviderConfig) (*OpenAIProvider, error) {
	chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: 0, // Default
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create openai chat model: %v", err)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = "dall-e-3"
	}

	return &OpenAIProvider{
		id:         cfg.ID,
		chat:       chat,
		images:     openai.NewClient(opts...),
		imageModel: imageModel,
	}, nil
}

func (p *OpenAIProvider) ID() string {
	return p.id
}

func (p *OpenAIProvider) SupportsTextRewrite() bool {
	return true
}

func (p *OpenAIProvider) SupportsImageGeneration() bool {
	return true
}

func (p *OpenAIProvider) RewriteText(ctx context.Context, req TextRequest) (string, error) {
	resp, err := p.chat.Generate(ctx, chatMessages(req))
	if err != nil {
		return "", p.wrap(err)
	}
	return resp.Content, nil
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, string, error) {
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(p.imageModel),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}

	resp, err := p.images.Images.Generate(ctx, params)
	if err != nil {
		return nil, "", p.wrap(err)
	}
	if len(resp.Data) == 0 {
		return nil, "", PermanentError(p.id, fmt.Errorf("empty image response"))
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, "", PermanentError(p.id, fmt.Errorf("failed to decode image payload: %v", err))
	}
	return data, "image/png", nil
}

// wrap converts SDK errors into typed provider errors using the HTTP
// status carried on each client's structured error type. Anything
// else (network failures mostly) passes through for KindOf to judge.
func (p *OpenAIProvider) wrap(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return FromHTTPStatus(p.id, apiErr.StatusCode, apiErr.Message)
	}
	var chatErr *goopenai.APIError
	if errors.As(err, &chatErr) {
		return FromHTTPStatus(p.id, chatErr.HTTPStatusCode, chatErr.Message)
	}
	return err
}
