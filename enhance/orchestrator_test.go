package enhance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"deckforge/deck"
	"deckforge/provider"
)

// fakeGateway plays back scripted results in call order. Running past
// the script yields chain exhaustion.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []provider.TextRequest
	replies []deck.ProviderResult
}

func (g *fakeGateway) RewriteText(_ context.Context, req provider.TextRequest) deck.ProviderResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if len(g.replies) == 0 {
		return deck.ProviderResult{Status: deck.StatusPermanentError}
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func okText(text string) deck.ProviderResult {
	return deck.ProviderResult{Status: deck.StatusSuccess, ProviderID: "fake-llm", Text: text}
}

func failed() deck.ProviderResult {
	return deck.ProviderResult{Status: deck.StatusPermanentError}
}

func sampleSlides() []deck.SlideContent {
	return []deck.SlideContent{
		{SlideNumber: 1, Title: "Company", BodyText: "Who we are", Metrics: map[string]float64{"revenue": 1200000}},
		{SlideNumber: 2, Title: "The Problem We Solve", BodyText: "Spreadsheets everywhere", KeyPoints: []string{"manual", "slow"}},
		{SlideNumber: 3, Title: "Our Solution", BodyText: "One pipeline"},
	}
}

func sampleProfile() deck.CompanyProfile {
	return deck.CompanyProfile{"company_name": "Acme", "industry": "fintech"}
}

// deckReplyJSON builds a fenced full-deck rewrite with n slides.
func deckReplyJSON(n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf(`{"slide_number": %d, "title": "Rewritten %d", "body_text": "Sharper body %d", "key_points": ["point %d"]}`, i+1, i+1, i+1, i+1)
	}
	return "```json\n[" + strings.Join(parts, ",\n") + "]\n```"
}

func slideReplyJSON(n int) string {
	return fmt.Sprintf(`{"slide_number": %d, "title": "Rewritten %d", "body_text": "Sharper body %d", "key_points": ["point %d"]}`, n, n, n, n)
}

func TestFullDeckRewriteAppliesAllSlides(t *testing.T) {
	slides := sampleSlides()
	gw := &fakeGateway{replies: []deck.ProviderResult{okText(deckReplyJSON(len(slides)))}}
	o := NewOrchestrator(gw, true, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if gw.callCount() != 1 {
		t.Fatalf("expected 1 gateway call, got %d", gw.callCount())
	}
	if len(out) != len(slides) {
		t.Fatalf("slide count changed: got %d, want %d", len(out), len(slides))
	}
	for i, s := range out {
		if s.SlideNumber != slides[i].SlideNumber {
			t.Errorf("slide %d: number changed to %d", slides[i].SlideNumber, s.SlideNumber)
		}
		if !s.Enhanced || s.EnhancedBy != "fake-llm" {
			t.Errorf("slide %d: not marked enhanced by fake-llm", s.SlideNumber)
		}
		want := fmt.Sprintf("Rewritten %d", i+1)
		if s.Title != want {
			t.Errorf("slide %d: title %q, want %q", s.SlideNumber, s.Title, want)
		}
	}
	if out[0].Metrics["revenue"] != 1200000 {
		t.Error("metrics were not carried over")
	}
	if slides[0].Title != "Company" || slides[0].Enhanced {
		t.Error("input slides were mutated")
	}
}

func TestFullDeckChainFailureKeepsOriginal(t *testing.T) {
	slides := sampleSlides()
	gw := &fakeGateway{replies: []deck.ProviderResult{failed()}}
	o := NewOrchestrator(gw, true, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if gw.callCount() != 1 {
		t.Fatalf("expected 1 gateway call (no per-slide retries against a dead chain), got %d", gw.callCount())
	}
	for i, s := range out {
		if s.Enhanced {
			t.Errorf("slide %d marked enhanced after chain failure", s.SlideNumber)
		}
		if s.Title != slides[i].Title || s.BodyText != slides[i].BodyText {
			t.Errorf("slide %d content changed after chain failure", s.SlideNumber)
		}
	}
}

func TestFullDeckBadJSONFallsBackToPerSlide(t *testing.T) {
	slides := sampleSlides()
	gw := &fakeGateway{replies: []deck.ProviderResult{
		okText("I could not produce the deck, sorry."),
		okText(slideReplyJSON(1)),
		okText(slideReplyJSON(2)),
		okText(slideReplyJSON(3)),
	}}
	o := NewOrchestrator(gw, true, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if gw.callCount() != 4 {
		t.Fatalf("expected 1 deck call + 3 slide calls, got %d", gw.callCount())
	}
	for i, s := range out {
		if !s.Enhanced {
			t.Errorf("slide %d not enhanced by per-slide fallback", s.SlideNumber)
		}
		want := fmt.Sprintf("Rewritten %d", i+1)
		if s.Title != want {
			t.Errorf("slide %d: title %q, want %q", s.SlideNumber, s.Title, want)
		}
	}
}

func TestFullDeckLengthMismatchFallsBackToPerSlide(t *testing.T) {
	slides := sampleSlides()
	gw := &fakeGateway{replies: []deck.ProviderResult{
		okText(deckReplyJSON(2)), // one slide short
		okText(slideReplyJSON(1)),
		okText(slideReplyJSON(2)),
		okText(slideReplyJSON(3)),
	}}
	o := NewOrchestrator(gw, true, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if gw.callCount() != 4 {
		t.Fatalf("expected fallback to 3 per-slide calls, got %d total calls", gw.callCount())
	}
	if len(out) != 3 {
		t.Fatalf("slide count changed: got %d", len(out))
	}
	for _, s := range out {
		if !s.Enhanced {
			t.Errorf("slide %d not enhanced", s.SlideNumber)
		}
	}
}

func TestPerSlideWhenFullRewriteDisabled(t *testing.T) {
	slides := sampleSlides()
	gw := &fakeGateway{replies: []deck.ProviderResult{
		okText(slideReplyJSON(1)),
		okText(slideReplyJSON(2)),
		okText(slideReplyJSON(3)),
	}}
	o := NewOrchestrator(gw, false, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if gw.callCount() != 3 {
		t.Fatalf("expected 3 per-slide calls, got %d", gw.callCount())
	}
	for _, s := range out {
		if !s.Enhanced || s.EnhancedBy != "fake-llm" {
			t.Errorf("slide %d not enhanced", s.SlideNumber)
		}
	}
}

func TestPerSlideFailurePassesThrough(t *testing.T) {
	slides := sampleSlides()
	gw := &fakeGateway{replies: []deck.ProviderResult{
		okText(slideReplyJSON(1)),
		failed(),
		okText(slideReplyJSON(3)),
	}}
	o := NewOrchestrator(gw, false, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if !out[0].Enhanced || !out[2].Enhanced {
		t.Error("surviving slides should be enhanced")
	}
	if out[1].Enhanced {
		t.Error("failed slide should pass through unmodified")
	}
	if out[1].Title != "The Problem We Solve" {
		t.Errorf("failed slide content changed: %q", out[1].Title)
	}
	if len(out) != 3 {
		t.Fatalf("slide count changed: got %d", len(out))
	}
}

func TestBlankRewriteKeepsOriginalText(t *testing.T) {
	slides := sampleSlides()[:1]
	gw := &fakeGateway{replies: []deck.ProviderResult{
		okText(`{"slide_number": 1, "title": "  ", "body_text": "", "key_points": ["still useful"]}`),
	}}
	o := NewOrchestrator(gw, false, nil)

	out := o.Enhance(context.Background(), sampleProfile(), slides)

	if out[0].Title != "Company" {
		t.Errorf("blank title should keep original, got %q", out[0].Title)
	}
	if out[0].BodyText != "Who we are" {
		t.Errorf("blank body should keep original, got %q", out[0].BodyText)
	}
	if len(out[0].KeyPoints) != 1 || out[0].KeyPoints[0] != "still useful" {
		t.Errorf("key points not replaced: %v", out[0].KeyPoints)
	}
	if !out[0].Enhanced {
		t.Error("slide should still be marked enhanced")
	}
}

func TestEmptySlideListMakesNoCalls(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(gw, true, nil)

	out := o.Enhance(context.Background(), sampleProfile(), nil)

	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d slides", len(out))
	}
	if gw.callCount() != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.callCount())
	}
}

func TestCanceledContextStopsPerSlideLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slides := sampleSlides()
	gw := &fakeGateway{}
	o := NewOrchestrator(gw, false, nil)

	out := o.Enhance(ctx, sampleProfile(), slides)

	if gw.callCount() != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", gw.callCount())
	}
	if len(out) != len(slides) {
		t.Fatalf("slide count changed: got %d", len(out))
	}
	for _, s := range out {
		if s.Enhanced {
			t.Errorf("slide %d enhanced after cancellation", s.SlideNumber)
		}
	}
}

func TestDeckPromptSortsProfileKeys(t *testing.T) {
	profile := deck.CompanyProfile{"revenue": "$1.2M ARR", "company_name": "Acme", "industry": "fintech"}
	prompt := buildDeckPrompt(profile, sampleSlides())

	if !strings.Contains(prompt, "company_name: Acme") {
		t.Fatal("profile facts missing from prompt")
	}
	ci := strings.Index(prompt, "company_name:")
	ii := strings.Index(prompt, "industry:")
	ri := strings.Index(prompt, "revenue:")
	if !(ci < ii && ii < ri) {
		t.Error("profile keys not rendered in sorted order")
	}
	if !strings.Contains(prompt, "Return exactly 3 slides") {
		t.Error("slide count missing from rules")
	}
}

func TestParseSlideListToleratesProse(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
	}{
		{"bare array", `[{"title": "A"}, {"title": "B"}]`, 2},
		{"json fence", "```json\n[{\"title\": \"A\"}]\n```", 1},
		{"generic fence", "```\n[{\"title\": \"A\"}]\n```", 1},
		{"surrounding prose", "Here is the deck:\n[{\"title\": \"A\"}]\nHope this helps!", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseSlideList(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got %d slides, want %d", len(got), tc.want)
			}
		})
	}

	if _, err := parseSlideList("no json here"); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestParseSlideObjectToleratesProse(t *testing.T) {
	got, err := parseSlideObject("Sure:\n{\"title\": \"Sharper\", \"body_text\": \"B\"}\nDone.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Sharper" {
		t.Fatalf("title %q", got.Title)
	}

	if _, err := parseSlideObject("not an object"); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

// Feature: content-enhancement, Property 1: enhancement preserves slide
// count, order, numbering, and metrics for any gateway behavior.
func TestProperty_EnhancePreservesDeckShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "slides")
		slides := make([]deck.SlideContent, n)
		for i := range slides {
			slides[i] = deck.SlideContent{
				SlideNumber: i + 1,
				Title:       fmt.Sprintf("Slide %d", i+1),
				BodyText:    "original body",
				Metrics:     map[string]float64{"revenue": float64(i + 1)},
			}
		}

		// Script enough replies for a deck call plus one per slide.
		replies := make([]deck.ProviderResult, 0, n+1)
		for i := 0; i < n+1; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "mode") {
			case 0:
				replies = append(replies, failed())
			case 1:
				replies = append(replies, okText("no json at all"))
			case 2:
				replies = append(replies, okText(slideReplyJSON(i)))
			default:
				replies = append(replies, okText(deckReplyJSON(n)))
			}
		}
		fullRewrite := rapid.Bool().Draw(t, "fullRewrite")

		gw := &fakeGateway{replies: replies}
		o := NewOrchestrator(gw, fullRewrite, nil)
		out := o.Enhance(context.Background(), sampleProfile(), slides)

		if len(out) != n {
			t.Fatalf("slide count changed: got %d, want %d", len(out), n)
		}
		for i, s := range out {
			if s.SlideNumber != i+1 {
				t.Fatalf("slide %d has number %d", i+1, s.SlideNumber)
			}
			if s.Title == "" {
				t.Fatalf("slide %d lost its title", s.SlideNumber)
			}
			if s.Metrics["revenue"] != float64(i+1) {
				t.Fatalf("slide %d metrics changed", s.SlideNumber)
			}
		}
	})
}
