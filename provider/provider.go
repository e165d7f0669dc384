package provider

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// TextRequest is one rewrite_text operation.
type TextRequest struct {
	System string
	Prompt string
}

// ImageRequest is one generate_image operation. Size is a "WxH" hint
// that each provider maps onto its own supported sizes.
type ImageRequest struct {
	Prompt string
	Size   string
}

// Provider is one interchangeable external content service. Capability
// flags are static; the gateway skips providers that do not support the
// requested operation, so implementations may panic-free return a
// permanent error from the operation they do not advertise.
type Provider interface {
	ID() string
	SupportsTextRewrite() bool
	SupportsImageGeneration() bool
	RewriteText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) (data []byte, mimeType string, err error)
}

// chatMessages builds the eino message list for one rewrite request.
func chatMessages(req TextRequest) []*schema.Message {
	var messages []*schema.Message
	if req.System != "" {
		messages = append(messages, &schema.Message{
			Role:    schema.System,
			Content: req.System,
		})
	}
	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: req.Prompt,
	})
	return messages
}

// OrderByPreference reorders the chain so the preferred provider id
// comes first, keeping the relative order of the rest. "auto" or an
// unknown id keeps the configured order.
func OrderByPreference(providers []Provider, preference string) []Provider {
	if preference == "" || preference == "auto" {
		return providers
	}
	out := make([]Provider, 0, len(providers))
	var rest []Provider
	for _, p := range providers {
		if p.ID() == preference {
			out = append(out, p)
		} else {
			rest = append(rest, p)
		}
	}
	if len(out) == 0 {
		return providers
	}
	return append(out, rest...)
}
