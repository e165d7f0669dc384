package visual

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"deckforge/brand"
	"deckforge/cache"
	"deckforge/deck"
	"deckforge/provider"
)

// ImageGateway is the slice of the provider gateway the generator needs.
type ImageGateway interface {
	GenerateImage(ctx context.Context, req provider.ImageRequest) deck.ProviderResult
}

// StockFetcher searches a photo source chain for one usable image.
type StockFetcher interface {
	Fetch(ctx context.Context, query string) (data []byte, mimeType string, sourceID string, err error)
}

// chartLayouts are the layout types whose slides carry numbers worth
// plotting.
var chartLayouts = map[deck.LayoutType]bool{
	deck.LayoutData:       true,
	deck.LayoutFinancials: true,
	deck.LayoutTraction:   true,
}

const (
	chartSource        = "chart"
	maxChartBars       = 4
	fullSlideImageSize = "1792x1024"
)

// GeneratorConfig carries the policy knobs for asset generation.
type GeneratorConfig struct {
	IncludeImages   bool    // photographic visuals (synthesized + stock) allowed
	MinImageBytes   int     // smallest payload accepted as a real image
	LossBandPercent float64 // allowed negative band for profitability metrics
	ConfigHash      string  // mixed into cache keys
}

// Generator decides and produces the at-most-one visual per slide.
// Rules run in order and stop at the first success: metric chart for
// data-heavy layouts, synthesized full-slide image, stock photo, none.
type Generator struct {
	gateway ImageGateway
	stock   StockFetcher
	store   *cache.Store
	kit     brand.Kit
	cfg     GeneratorConfig
	logger  func(string)
}

// NewGenerator creates a visual asset generator.
func NewGenerator(gateway ImageGateway, stock StockFetcher, store *cache.Store, kit brand.Kit, cfg GeneratorConfig, logger func(string)) *Generator {
	if cfg.MinImageBytes <= 0 {
		cfg.MinImageBytes = 1
	}
	return &Generator{
		gateway: gateway,
		stock:   stock,
		store:   store,
		kit:     kit,
		cfg:     cfg,
		logger:  logger,
	}
}

func (g *Generator) log(msg string) {
	if g.logger != nil {
		g.logger(msg)
	}
}

// GenerateAsset returns the visual for a slide, or nil when the slide
// should render text-only. Failures never propagate: every rule that
// cannot deliver falls through to the next one.
func (g *Generator) GenerateAsset(ctx context.Context, slide deck.SlideContent, layout deck.LayoutDecision, profile deck.CompanyProfile) *deck.GeneratedAsset {
	if asset := g.chartAsset(slide, layout, profile); asset != nil {
		return asset
	}
	if !g.cfg.IncludeImages {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: photographic visuals disabled, rendering text only", slide.SlideNumber))
		return nil
	}
	if asset := g.synthesizedAsset(ctx, slide, profile); asset != nil {
		return asset
	}
	if asset := g.stockAsset(ctx, slide); asset != nil {
		return asset
	}
	g.log(fmt.Sprintf("[VISUAL] Slide %d: no visual, rendering text only", slide.SlideNumber))
	return nil
}

// chartAsset renders a metric bar chart for data-heavy layouts backed by
// at least one chartable number.
func (g *Generator) chartAsset(slide deck.SlideContent, layout deck.LayoutDecision, profile deck.CompanyProfile) *deck.GeneratedAsset {
	if !chartLayouts[layout.LayoutType] {
		return nil
	}
	points := g.chartPoints(slide, profile)
	if len(points) == 0 {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: %s layout has no chartable metrics, falling through", slide.SlideNumber, layout.LayoutType))
		return nil
	}

	key := cache.Key("chart", g.cfg.ConfigHash, slide.Title, fingerprint(points))
	if path, data, info, ok := g.store.LookupAsset(key); ok {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: chart served from cache", slide.SlideNumber))
		return &deck.GeneratedAsset{
			Kind:           deck.AssetChart,
			Path:           path,
			MimeType:       info.MimeType,
			SourceProvider: info.ProviderID,
			ContentHash:    contentHash(data),
			CacheHit:       true,
		}
	}

	png, err := RenderMetricChart(slide.Title, points, g.kit)
	if err != nil {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: chart render failed: %v", slide.SlideNumber, err))
		return nil
	}
	path, err := g.store.SaveAsset(key, png, "image/png", chartSource)
	if err != nil {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: chart cache write failed: %v", slide.SlideNumber, err))
		return nil
	}
	g.log(fmt.Sprintf("[VISUAL] Slide %d: chart rendered from %d metrics", slide.SlideNumber, len(points)))
	return &deck.GeneratedAsset{
		Kind:           deck.AssetChart,
		Path:           path,
		MimeType:       "image/png",
		SourceProvider: chartSource,
		ContentHash:    contentHash(png),
	}
}

// chartPoints gathers chartable metrics: slide-level numbers first, then
// the profile's revenue, growth, and custom metric lines.
func (g *Generator) chartPoints(slide deck.SlideContent, profile deck.CompanyProfile) []deck.MetricPoint {
	var candidates []deck.MetricPoint

	names := make([]string, 0, len(slide.Metrics))
	for name := range slide.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		candidates = append(candidates, deck.MetricPoint{Name: name, Value: slide.Metrics[name]})
	}

	revenueBase := 0.0
	if rev, ok := profile.RevenueMetric(); ok {
		candidates = append(candidates, rev)
		revenueBase = math.Abs(rev.Value)
	}
	if growth, ok := profile.GrowthMetric(); ok {
		candidates = append(candidates, growth)
	}
	candidates = append(candidates, profile.CustomMetrics()...)

	seen := make(map[string]bool)
	var out []deck.MetricPoint
	for _, c := range candidates {
		lower := strings.ToLower(c.Name)
		if seen[lower] || !g.chartable(c, revenueBase) {
			continue
		}
		seen[lower] = true
		out = append(out, c)
		if len(out) == maxChartBars {
			break
		}
	}
	return out
}

// chartable applies the sign rules: volume metrics must be positive,
// profitability metrics may dip into the configured loss band. The band
// is a share of revenue when revenue is known, otherwise the raw
// percentage (covers margin-style figures).
func (g *Generator) chartable(p deck.MetricPoint, revenueBase float64) bool {
	if p.Value > 0 {
		return true
	}
	if p.Value == 0 || !deck.IsProfitabilityMetric(p.Name) {
		return false
	}
	band := g.cfg.LossBandPercent
	if revenueBase > 0 {
		band = revenueBase * g.cfg.LossBandPercent / 100
	}
	return math.Abs(p.Value) <= band
}

// synthesizedAsset asks the provider chain for a full-slide image. The
// payload must be real binary image data of a useful size; anything else
// falls through to stock search.
func (g *Generator) synthesizedAsset(ctx context.Context, slide deck.SlideContent, profile deck.CompanyProfile) *deck.GeneratedAsset {
	result := g.gateway.GenerateImage(ctx, provider.ImageRequest{
		Prompt: imagePrompt(slide, profile),
		Size:   fullSlideImageSize,
	})
	if !result.OK() {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: image synthesis failed (%s), trying stock", slide.SlideNumber, result.Status))
		return nil
	}
	mime := g.acceptImage(result.Payload)
	if mime == "" {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: synthesized payload rejected (%d bytes), trying stock", slide.SlideNumber, len(result.Payload)))
		return nil
	}
	g.log(fmt.Sprintf("[VISUAL] Slide %d: full-slide image by %s (%d bytes)", slide.SlideNumber, result.ProviderID, len(result.Payload)))
	return &deck.GeneratedAsset{
		Kind:           deck.AssetFullSlideImage,
		Path:           result.Path,
		MimeType:       mime,
		SourceProvider: result.ProviderID,
		ContentHash:    contentHash(result.Payload),
		CacheHit:       result.CacheHit,
	}
}

// acceptImage returns the sniffed mime type for a valid image payload,
// or "" when the payload is too small or not image data at all.
func (g *Generator) acceptImage(data []byte) string {
	if len(data) < g.cfg.MinImageBytes {
		return ""
	}
	return brand.SniffImageMime(data)
}

// stockAsset searches the photo source chain with keywords derived from
// the slide text.
func (g *Generator) stockAsset(ctx context.Context, slide deck.SlideContent) *deck.GeneratedAsset {
	query := SearchQuery(slide.Title, slide.BodyText)

	key := cache.Key("stock", g.cfg.ConfigHash, query)
	if path, data, info, ok := g.store.LookupAsset(key); ok {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: stock photo served from cache for %q", slide.SlideNumber, query))
		return &deck.GeneratedAsset{
			Kind:           deck.AssetStockImage,
			Path:           path,
			MimeType:       info.MimeType,
			SourceProvider: info.ProviderID,
			ContentHash:    contentHash(data),
			CacheHit:       true,
		}
	}

	data, mimeType, sourceID, err := g.stock.Fetch(ctx, query)
	if err != nil {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: stock search failed for %q: %v", slide.SlideNumber, query, err))
		return nil
	}
	path, err := g.store.SaveAsset(key, data, mimeType, sourceID)
	if err != nil {
		g.log(fmt.Sprintf("[VISUAL] Slide %d: stock cache write failed: %v", slide.SlideNumber, err))
		return nil
	}
	g.log(fmt.Sprintf("[VISUAL] Slide %d: stock photo from %s for %q", slide.SlideNumber, sourceID, query))
	return &deck.GeneratedAsset{
		Kind:           deck.AssetStockImage,
		Path:           path,
		MimeType:       mimeType,
		SourceProvider: sourceID,
		ContentHash:    contentHash(data),
	}
}

// imagePrompt builds a deterministic synthesis prompt so repeat runs hit
// the image cache.
func imagePrompt(slide deck.SlideContent, profile deck.CompanyProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Full-slide presentation background for a pitch deck slide titled %q.", slide.Title)
	if body := truncateRunes(slide.BodyText, 240); body != "" {
		fmt.Fprintf(&b, " Slide theme: %s.", body)
	}
	if industry := profile.Get("industry", "sector"); industry != "" {
		fmt.Fprintf(&b, " Industry: %s.", industry)
	}
	b.WriteString(" Wide 16:9 composition, modern flat illustration style, muted professional palette, no text or lettering.")
	return b.String()
}

func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fingerprint folds the plotted points into the chart cache key so a
// metric change redraws the chart.
func fingerprint(points []deck.MetricPoint) string {
	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "%s=%g;", p.Name, p.Value)
	}
	return b.String()
}
