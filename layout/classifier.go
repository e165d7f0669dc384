package layout

import (
	"fmt"
	"strings"

	"deckforge/deck"
)

// archetype pairs a layout type with its trigger keywords. Declaration
// order doubles as the tie-break priority: on equal scores the earlier
// archetype wins.
type archetype struct {
	layout   deck.LayoutType
	keywords []string
}

var archetypes = []archetype{
	{deck.LayoutTitle, []string{"welcome", "company", "introduction", "overview", "about us", "hello"}},
	{deck.LayoutProblem, []string{"problem", "challenge", "pain", "broken", "struggle", "frustration"}},
	{deck.LayoutSolution, []string{"solution", "how it works", "our approach", "product", "platform", "introducing", "we built"}},
	{deck.LayoutData, []string{"market", "opportunity", "tam", "industry size", "research", "statistics", "data"}},
	{deck.LayoutComparison, []string{"competition", "competitors", "versus", "vs.", "alternative", "landscape", "comparison", "compare", "differentiation"}},
	{deck.LayoutTimeline, []string{"roadmap", "timeline", "milestones", "journey", "history", "phases", "next steps"}},
	{deck.LayoutTeam, []string{"team", "founders", "leadership", "advisors", "who we are"}},
	{deck.LayoutFinancials, []string{"financials", "revenue", "projections", "forecast", "unit economics", "business model", "pricing"}},
	{deck.LayoutTraction, []string{"traction", "growth", "customers", "momentum", "kpi", "retention", "adoption"}},
	{deck.LayoutVision, []string{"vision", "mission", "believe", "purpose", "the future", "why we exist"}},
}

// layoutConfigs holds the placement ratios each archetype renders with.
var layoutConfigs = map[deck.LayoutType]deck.LayoutConfig{
	deck.LayoutTitle:      {TitleRatio: 0.35, BodyRatio: 0.8, VisualRatio: 0, Centered: true},
	deck.LayoutProblem:    {TitleRatio: 0.18, BodyRatio: 0.55, VisualRatio: 0.4, VisualRight: true},
	deck.LayoutSolution:   {TitleRatio: 0.18, BodyRatio: 0.55, VisualRatio: 0.4, VisualRight: true},
	deck.LayoutData:       {TitleRatio: 0.16, BodyRatio: 0.42, VisualRatio: 0.55, VisualRight: true},
	deck.LayoutComparison: {TitleRatio: 0.16, BodyRatio: 0.48, VisualRatio: 0.48, VisualRight: true},
	deck.LayoutTimeline:   {TitleRatio: 0.16, BodyRatio: 0.6, VisualRatio: 0.35, VisualRight: true},
	deck.LayoutTeam:       {TitleRatio: 0.16, BodyRatio: 0.5, VisualRatio: 0.45, VisualRight: true},
	deck.LayoutFinancials: {TitleRatio: 0.16, BodyRatio: 0.42, VisualRatio: 0.55, VisualRight: true},
	deck.LayoutTraction:   {TitleRatio: 0.16, BodyRatio: 0.42, VisualRatio: 0.55, VisualRight: true},
	deck.LayoutVision:     {TitleRatio: 0.3, BodyRatio: 0.7, VisualRatio: 0, Centered: true},
	deck.LayoutDefault:    {TitleRatio: 0.18, BodyRatio: 0.6, VisualRatio: 0.35, VisualRight: true},
}

// ConfigFor returns the placement config for a layout type.
func ConfigFor(t deck.LayoutType) deck.LayoutConfig {
	if cfg, ok := layoutConfigs[t]; ok {
		return cfg
	}
	return layoutConfigs[deck.LayoutDefault]
}

// Classifier scores slide content against the layout archetypes
type Classifier struct {
	logger func(string)
}

// NewClassifier creates a new layout classifier
func NewClassifier(logger func(string)) *Classifier {
	return &Classifier{
		logger: logger,
	}
}

// Classify picks the layout archetype for one slide. Title hits weigh
// three times body hits; the strictly highest nonzero score wins and an
// all-zero score falls back to the default layout. Pure keyword scoring,
// no external calls.
func (c *Classifier) Classify(title, bodyText string, keyPoints []string) deck.LayoutDecision {
	titleLower := strings.ToLower(title)
	bodyLower := strings.ToLower(bodyText + " " + strings.Join(keyPoints, " "))

	best := deck.LayoutDefault
	bestScore := 0
	for _, a := range archetypes {
		score := 0
		for _, keyword := range a.keywords {
			if strings.Contains(titleLower, keyword) {
				score += 3
			}
			if strings.Contains(bodyLower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = a.layout
			bestScore = score
		}
	}

	c.log(fmt.Sprintf("[LAYOUT] Slide %q classified as: %s (score %d)", title, best, bestScore))
	return deck.LayoutDecision{LayoutType: best, Config: ConfigFor(best)}
}

func (c *Classifier) log(message string) {
	if c.logger != nil {
		c.logger(message)
	}
}
