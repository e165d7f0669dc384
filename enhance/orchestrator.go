package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"deckforge/deck"
	"deckforge/provider"
)

// Gateway is the slice of the provider gateway the orchestrator needs.
type Gateway interface {
	RewriteText(ctx context.Context, req provider.TextRequest) deck.ProviderResult
}

// Orchestrator personalizes outline slides against the company profile.
// It first attempts a single whole-deck rewrite; when that is disabled or
// the response is unusable it falls back to enhancing slides one by one.
// Enhancement never fails a run: any slide the providers cannot improve
// passes through unchanged.
type Orchestrator struct {
	gateway     Gateway
	fullRewrite bool
	logger      func(string)
}

// NewOrchestrator creates a content enhancement orchestrator.
func NewOrchestrator(gateway Gateway, fullRewrite bool, logger func(string)) *Orchestrator {
	return &Orchestrator{
		gateway:     gateway,
		fullRewrite: fullRewrite,
		logger:      logger,
	}
}

func (o *Orchestrator) log(msg string) {
	if o.logger != nil {
		o.logger(msg)
	}
}

// Enhance returns personalized copies of the input slides. The output
// always has the same length and slide numbers as the input; metrics
// carry over untouched. Slides that were actually rewritten carry the
// Enhanced flag and the id of the provider that produced the copy.
func (o *Orchestrator) Enhance(ctx context.Context, profile deck.CompanyProfile, slides []deck.SlideContent) []deck.SlideContent {
	out := make([]deck.SlideContent, len(slides))
	for i, s := range slides {
		out[i] = s.Clone()
	}
	if len(out) == 0 {
		return out
	}

	if o.fullRewrite {
		done, err := o.enhanceDeck(ctx, profile, out)
		if done {
			return out
		}
		if err == nil {
			// Chain exhausted: per-slide calls would hit the same dead
			// providers, so keep the original content.
			return out
		}
		o.log(fmt.Sprintf("[ENHANCE] Full-deck rewrite unusable (%v), enhancing slides individually", err))
	} else {
		o.log(fmt.Sprintf("[ENHANCE] Full-deck rewrite disabled, enhancing %d slides individually", len(out)))
	}

	o.enhanceSlides(ctx, profile, out)
	return out
}

// enhanceDeck runs the whole-deck rewrite. It reports done=true when the
// slides were updated, and a non-nil error when the provider answered but
// the response could not be applied (the per-slide path should then take
// over). done=false with a nil error means the provider chain itself
// failed.
func (o *Orchestrator) enhanceDeck(ctx context.Context, profile deck.CompanyProfile, slides []deck.SlideContent) (bool, error) {
	result := o.gateway.RewriteText(ctx, provider.TextRequest{
		System: systemPrompt,
		Prompt: buildDeckPrompt(profile, slides),
	})
	if !result.OK() {
		o.log(fmt.Sprintf("[ENHANCE] Full-deck rewrite failed (%s), keeping original content", result.Status))
		return false, nil
	}

	rewrites, err := parseSlideList(result.Text)
	if err != nil {
		return false, err
	}
	if len(rewrites) != len(slides) {
		return false, fmt.Errorf("rewrite returned %d slides, want %d", len(rewrites), len(slides))
	}

	for i := range slides {
		applyRewrite(&slides[i], rewrites[i], result.ProviderID)
	}
	o.log(fmt.Sprintf("[ENHANCE] Full-deck rewrite by %s applied to %d slides", result.ProviderID, len(slides)))
	return true, nil
}

// enhanceSlides rewrites each slide independently. Failures keep the
// original copy for that slide only.
func (o *Orchestrator) enhanceSlides(ctx context.Context, profile deck.CompanyProfile, slides []deck.SlideContent) {
	enhanced := 0
	for i := range slides {
		if ctx.Err() != nil {
			o.log(fmt.Sprintf("[ENHANCE] Context canceled after %d/%d slides", i, len(slides)))
			break
		}

		result := o.gateway.RewriteText(ctx, provider.TextRequest{
			System: systemPrompt,
			Prompt: buildSlidePrompt(profile, slides[i]),
		})
		if !result.OK() {
			o.log(fmt.Sprintf("[ENHANCE] Slide %d enhancement failed (%s), keeping original", slides[i].SlideNumber, result.Status))
			continue
		}

		rw, err := parseSlideObject(result.Text)
		if err != nil {
			o.log(fmt.Sprintf("[ENHANCE] Slide %d response unusable (%v), keeping original", slides[i].SlideNumber, err))
			continue
		}

		applyRewrite(&slides[i], rw, result.ProviderID)
		enhanced++
	}
	o.log(fmt.Sprintf("[ENHANCE] Per-slide enhancement complete: %d/%d slides enhanced", enhanced, len(slides)))
}

// slideRewrite is the shape providers are asked to emit per slide.
type slideRewrite struct {
	SlideNumber int      `json:"slide_number"`
	Title       string   `json:"title"`
	BodyText    string   `json:"body_text"`
	KeyPoints   []string `json:"key_points"`
}

// applyRewrite copies the rewritten text onto the slide. Slide numbers
// and metrics are never taken from the provider; blank titles or bodies
// keep the original so a garbled response cannot blank a slide.
func applyRewrite(s *deck.SlideContent, rw slideRewrite, providerID string) {
	if t := strings.TrimSpace(rw.Title); t != "" {
		s.Title = t
	}
	if b := strings.TrimSpace(rw.BodyText); b != "" {
		s.BodyText = b
	}
	s.KeyPoints = cleanPoints(rw.KeyPoints)
	s.Enhanced = true
	s.EnhancedBy = providerID
}

func cleanPoints(points []string) []string {
	var out []string
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+7:]
		if endIdx := strings.Index(content, "```"); endIdx >= 0 {
			content = content[:endIdx]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if endIdx := strings.Index(content, "```"); endIdx >= 0 {
			content = content[:endIdx]
		}
	}

	return strings.TrimSpace(content)
}

// parseSlideList extracts a JSON slide array from a model response,
// tolerating fences and surrounding prose.
func parseSlideList(content string) ([]slideRewrite, error) {
	content = stripFences(content)

	var out []slideRewrite
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse slide array: %v", err)
	}
	return out, nil
}

// parseSlideObject extracts a single JSON slide object from a model
// response.
func parseSlideObject(content string) (slideRewrite, error) {
	content = stripFences(content)

	var out slideRewrite
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return slideRewrite{}, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return slideRewrite{}, fmt.Errorf("parse slide object: %v", err)
	}
	return out, nil
}
