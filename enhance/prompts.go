package enhance

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"deckforge/deck"
)

const systemPrompt = `You are a senior pitch deck copywriter. You rewrite investor presentation slides so they are specific, confident, and grounded in the company's real facts. Never invent numbers that are not in the company profile. Output only valid JSON.`

// slidePayload is the slide shape sent to providers. Metrics and
// enhancement flags stay out of the prompt.
type slidePayload struct {
	SlideNumber int      `json:"slide_number"`
	Title       string   `json:"title"`
	BodyText    string   `json:"body_text"`
	KeyPoints   []string `json:"key_points,omitempty"`
}

func toPayload(s deck.SlideContent) slidePayload {
	return slidePayload{
		SlideNumber: s.SlideNumber,
		Title:       s.Title,
		BodyText:    s.BodyText,
		KeyPoints:   s.KeyPoints,
	}
}

// profileSection renders the company profile as key: value lines. Keys
// are sorted so the same profile always produces the same prompt bytes
// and repeat runs hit the response cache.
func profileSection(profile deck.CompanyProfile) string {
	if len(profile) == 0 {
		return "(none provided)"
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, profile[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildDeckPrompt asks for a rewrite of the entire deck in one response.
func buildDeckPrompt(profile deck.CompanyProfile, slides []deck.SlideContent) string {
	payload := make([]slidePayload, len(slides))
	for i, s := range slides {
		payload[i] = toPayload(s)
	}
	slidesJSON, _ := json.MarshalIndent(payload, "", "  ")

	return fmt.Sprintf(`Rewrite every slide of this investor pitch deck for the company described below.

## Company Profile
%s

## Slides
%s

## Rules
- Return exactly %d slides, in the same order, with the same slide_number values.
- Keep each slide's subject; make the copy specific to this company.
- Titles stay under 60 characters. Body text stays under 80 words.
- key_points are short phrases, not full sentences.

## Output JSON
[{"slide_number": 1, "title": "...", "body_text": "...", "key_points": ["..."]}]

Output only JSON.`, profileSection(profile), slidesJSON, len(slides))
}

// buildSlidePrompt asks for a rewrite of one slide.
func buildSlidePrompt(profile deck.CompanyProfile, slide deck.SlideContent) string {
	slideJSON, _ := json.MarshalIndent(toPayload(slide), "", "  ")

	return fmt.Sprintf(`Rewrite this investor pitch deck slide for the company described below.

## Company Profile
%s

## Slide
%s

## Rules
- Keep the slide's subject; make the copy specific to this company.
- The title stays under 60 characters. Body text stays under 80 words.
- key_points are short phrases, not full sentences.

## Output JSON
{"slide_number": %d, "title": "...", "body_text": "...", "key_points": ["..."]}

Output only JSON.`, profileSection(profile), slideJSON, slide.SlideNumber)
}
