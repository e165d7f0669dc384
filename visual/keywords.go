package visual

import (
	"strings"
	"unicode"
)

// stopwords are filler words that make image search queries worse.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"of": true, "in": true, "to": true, "for": true, "with": true,
	"on": true, "at": true, "by": true, "from": true, "as": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"so": true, "than": true, "that": true, "this": true, "these": true,
	"those": true, "it": true, "its": true, "we": true, "our": true,
	"you": true, "your": true, "they": true, "their": true, "us": true,
	"how": true, "what": true, "why": true, "who": true, "where": true,
	"about": true, "into": true, "over": true, "per": true, "via": true,
	"more": true, "most": true, "all": true, "any": true, "not": true,
	"no": true, "new": true, "can": true, "get": true, "make": true,
	"solve": true, "need": true, "needs": true, "use": true, "using": true,
}

// domainTerms maps pitch deck jargon onto phrases stock photo indexes
// actually understand. Searching "traction" returns tractors.
var domainTerms = map[string]string{
	"traction":    "growth success metrics",
	"ask":         "investment funding handshake",
	"team":        "professional team collaboration",
	"problem":     "business challenge obstacle",
	"solution":    "innovation technology",
	"market":      "market opportunity growth",
	"vision":      "future horizon",
	"mission":     "purpose direction compass",
	"financials":  "financial analysis documents",
	"revenue":     "business growth chart",
	"competition": "chess strategy",
	"competitors": "chess strategy",
	"roadmap":     "road journey milestones",
	"tam":         "global market reach",
	"saas":        "software dashboard screen",
	"b2b":         "business meeting office",
	"moat":        "castle fortress protection",
	"runway":      "airplane takeoff runway",
	"churn":       "customer retention loyalty",
	"pipeline":    "sales funnel business",
}

const fallbackQuery = "business presentation"

// maxQueryWords caps query length; stock APIs rank long queries poorly.
const maxQueryWords = 6

// SearchQuery turns a slide's title and body into a short stock photo
// search phrase: lowercase tokens, stopwords and numbers stripped,
// domain jargon mapped to image-searchable phrases, first terms win.
func SearchQuery(title, body string) string {
	seen := make(map[string]bool)
	var parts []string
	words := 0

	for _, tok := range tokenize(title + " " + body) {
		if words >= maxQueryWords {
			break
		}
		phrase := tok
		if mapped, ok := domainTerms[tok]; ok {
			phrase = mapped
		}
		if seen[tok] || seen[phrase] {
			continue
		}
		seen[tok] = true
		for _, w := range strings.Fields(phrase) {
			seen[w] = true
		}
		parts = append(parts, phrase)
		words += len(strings.Fields(phrase))
	}

	if len(parts) == 0 {
		return fallbackQuery
	}
	return strings.Join(parts, " ")
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// stopwords, single letters, and tokens that start with a digit.
func tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var out []string
	for _, tok := range raw {
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		if tok[0] >= '0' && tok[0] <= '9' {
			continue
		}
		out = append(out, tok)
	}
	return out
}
