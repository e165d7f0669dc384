package deck

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MetricPoint is one named numeric value ready for chart rendering.
type MetricPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

var metricNumberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseMetricValue extracts a numeric magnitude from a free-form metric
// string such as "$1.2M", "€500K", "15%", "2.5B users" or "(250K)".
// Currency symbols are ignored, thousands separators stripped, and a
// K/M/B suffix (or thousand/million/billion word) scales the value.
// Accounting parentheses and a leading minus mark the value negative.
// Returns false when the string contains no number at all.
func ParseMetricValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.ReplaceAll(s, ",", "")
	loc := metricNumberRe.FindStringIndex(s)
	if loc == nil {
		return 0, false
	}
	if strings.ContainsRune(s[:loc[0]], '-') {
		neg = true
	}
	v, err := strconv.ParseFloat(s[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, false
	}
	v *= suffixScale(s[loc[1]:])
	if neg {
		v = -v
	}
	return v, true
}

// suffixScale reads the token right after the number and returns the
// multiplier it implies.
func suffixScale(tail string) float64 {
	tail = strings.TrimLeft(tail, " \t")
	i := 0
	for i < len(tail) {
		c := tail[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			break
		}
		i++
	}
	switch strings.ToLower(tail[:i]) {
	case "k", "thousand":
		return 1e3
	case "m", "mm", "mil", "million":
		return 1e6
	case "b", "bn", "billion":
		return 1e9
	}
	return 1
}

// FormatMetricValue renders a magnitude back into the compact K/M/B form
// used on chart labels.
func FormatMetricValue(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e9:
		return compactFloat(v/1e9) + "B"
	case a >= 1e6:
		return compactFloat(v/1e6) + "M"
	case a >= 1e3:
		return compactFloat(v/1e3) + "K"
	default:
		return compactFloat(v)
	}
}

func compactFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// IsProfitabilityMetric reports whether a metric name describes
// profitability rather than top-line volume. Profitability metrics may
// chart slightly negative values (an early-stage loss), volume metrics
// must be positive.
func IsProfitabilityMetric(name string) bool {
	n := strings.ToLower(name)
	for _, w := range []string{"profit", "margin", "ebitda", "net income", "earnings", "burn", "loss"} {
		if strings.Contains(n, w) {
			return true
		}
	}
	return false
}

var revenueKeys = []string{"annual_revenue", "revenue", "arr", "mrr", "sales"}
var growthKeys = []string{"growth_rate", "growth", "yoy_growth", "mom_growth"}

// RevenueMetric returns the profile's revenue figure, if one parses.
func (p CompanyProfile) RevenueMetric() (MetricPoint, bool) {
	return p.metricFromKeys(revenueKeys)
}

// GrowthMetric returns the profile's growth figure, if one parses.
func (p CompanyProfile) GrowthMetric() (MetricPoint, bool) {
	return p.metricFromKeys(growthKeys)
}

func (p CompanyProfile) metricFromKeys(keys []string) (MetricPoint, bool) {
	for _, k := range keys {
		raw, ok := p[k]
		if !ok || raw == "" {
			continue
		}
		if v, ok := ParseMetricValue(raw); ok {
			return MetricPoint{Name: titleKey(k), Value: v}, true
		}
	}
	return MetricPoint{}, false
}

// CustomMetrics parses the free-form "key_metrics" profile entry, one
// "Name: value" pair per line or semicolon-separated.
func (p CompanyProfile) CustomMetrics() []MetricPoint {
	raw := p.Get("key_metrics", "metrics")
	if raw == "" {
		return nil
	}
	return ParseMetricLines(raw)
}

// ParseMetricLines splits free text into named metric points. Lines
// without a colon or without a parseable number are skipped.
func ParseMetricLines(text string) []MetricPoint {
	var out []MetricPoint
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ';' }) {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		v, ok := ParseMetricValue(value)
		if !ok || name == "" {
			continue
		}
		out = append(out, MetricPoint{Name: name, Value: v})
	}
	return out
}

func titleKey(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		if w == "arr" || w == "mrr" {
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
