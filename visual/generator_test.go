package visual

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"deckforge/brand"
	"deckforge/cache"
	"deckforge/deck"
	"deckforge/provider"
)

type fakeImageGateway struct {
	mu     sync.Mutex
	calls  int
	result deck.ProviderResult
}

func (f *fakeImageGateway) GenerateImage(_ context.Context, _ provider.ImageRequest) deck.ProviderResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

func (f *fakeImageGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStock struct {
	mu      sync.Mutex
	queries []string
	data    []byte
	mime    string
	source  string
	err     error
}

func (f *fakeStock) Fetch(_ context.Context, query string) ([]byte, string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, "", "", f.err
	}
	return f.data, f.mime, f.source, nil
}

func (f *fakeStock) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// pngBytes builds a sniffable PNG payload of the given size.
func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	return data
}

func defaultCfg() GeneratorConfig {
	return GeneratorConfig{
		IncludeImages:   true,
		MinImageBytes:   100,
		LossBandPercent: 20,
		ConfigHash:      "test-config",
	}
}

func newTestGenerator(t *testing.T, gw ImageGateway, stock StockFetcher, cfg GeneratorConfig) *Generator {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("cache store: %v", err)
	}
	return NewGenerator(gw, stock, store, brand.NewKit("", "", "", ""), cfg, nil)
}

func goodImageResult() deck.ProviderResult {
	return deck.ProviderResult{
		Status:     deck.StatusSuccess,
		ProviderID: "openai",
		Payload:    pngBytes(4096),
		MimeType:   "image/png",
		Path:       "/tmp/synth.png",
	}
}

func layoutOf(t deck.LayoutType) deck.LayoutDecision {
	return deck.LayoutDecision{LayoutType: t}
}

func TestChartWinsForDataLayoutWithMetrics(t *testing.T) {
	gw := &fakeImageGateway{result: goodImageResult()}
	stock := &fakeStock{data: pngBytes(2048), mime: "image/png", source: "pexels"}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 4, Title: "Market Opportunity ($4B TAM)"}
	profile := deck.CompanyProfile{"annual_revenue": "$1.2M"}

	asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutData), profile)
	if asset == nil || asset.Kind != deck.AssetChart {
		t.Fatalf("expected chart asset, got %+v", asset)
	}
	if gw.callCount() != 0 || stock.callCount() != 0 {
		t.Error("chart must win before any provider or stock call")
	}
	if asset.SourceProvider != chartSource {
		t.Errorf("chart provider %q", asset.SourceProvider)
	}
	if asset.ContentHash == "" {
		t.Error("missing content hash")
	}
	data, err := os.ReadFile(asset.Path)
	if err != nil {
		t.Fatalf("chart file unreadable: %v", err)
	}
	if brand.SniffImageMime(data) != "image/png" {
		t.Error("persisted chart is not a PNG")
	}
}

func TestChartCacheHitOnSecondRun(t *testing.T) {
	g := newTestGenerator(t, &fakeImageGateway{}, &fakeStock{err: fmt.Errorf("down")}, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 2, Title: "Traction", Metrics: map[string]float64{"MRR": 95000}}
	layout := layoutOf(deck.LayoutTraction)

	first := g.GenerateAsset(context.Background(), slide, layout, nil)
	if first == nil || first.CacheHit {
		t.Fatalf("first chart should be a fresh render, got %+v", first)
	}
	second := g.GenerateAsset(context.Background(), slide, layout, nil)
	if second == nil || !second.CacheHit {
		t.Fatalf("second chart should hit the cache, got %+v", second)
	}
	if second.Path != first.Path {
		t.Errorf("cache hit moved the asset: %q vs %q", second.Path, first.Path)
	}
}

func TestDataLayoutWithoutMetricsFallsToImage(t *testing.T) {
	gw := &fakeImageGateway{result: goodImageResult()}
	stock := &fakeStock{}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 3, Title: "Our Numbers"}
	asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutData), nil)

	if asset == nil || asset.Kind != deck.AssetFullSlideImage {
		t.Fatalf("expected synthesized image, got %+v", asset)
	}
	if asset.SourceProvider != "openai" {
		t.Errorf("provider %q", asset.SourceProvider)
	}
	if stock.callCount() != 0 {
		t.Error("stock must not be reached when synthesis succeeds")
	}
}

func TestNegativeVolumeMetricNotCharted(t *testing.T) {
	gw := &fakeImageGateway{result: goodImageResult()}
	g := newTestGenerator(t, gw, &fakeStock{}, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 5, Title: "Financials"}
	profile := deck.CompanyProfile{"annual_revenue": "-500K"}

	asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutFinancials), profile)
	if asset == nil || asset.Kind != deck.AssetFullSlideImage {
		t.Fatalf("negative revenue must fall through to synthesis, got %+v", asset)
	}
}

func TestLossBandAllowsSmallLoss(t *testing.T) {
	g := newTestGenerator(t, &fakeImageGateway{}, &fakeStock{}, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 5, Title: "Financials"}
	inBand := deck.CompanyProfile{"key_metrics": "Net Margin: -15%"}
	outOfBand := deck.CompanyProfile{"key_metrics": "Net Margin: -45%"}

	if asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutFinancials), inBand); asset == nil || asset.Kind != deck.AssetChart {
		t.Fatalf("loss within band should chart, got %+v", asset)
	}
	if asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutFinancials), outOfBand); asset != nil && asset.Kind == deck.AssetChart {
		t.Fatal("loss outside band must not chart")
	}
}

func TestLossBandScalesWithRevenue(t *testing.T) {
	g := newTestGenerator(t, &fakeImageGateway{}, &fakeStock{}, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 5, Title: "Financials"}
	// Band is 20% of $1M revenue: a $150K loss charts, a $350K loss does not.
	small := deck.CompanyProfile{"annual_revenue": "$1M", "key_metrics": "Net Profit: (150K)"}
	large := deck.CompanyProfile{"annual_revenue": "$1M", "key_metrics": "Net Profit: (350K)"}

	if points := g.chartPoints(slide, small); len(points) != 2 {
		t.Fatalf("in-band loss should chart next to revenue, got %v", points)
	}
	points := g.chartPoints(slide, large)
	if len(points) != 1 {
		t.Fatalf("out-of-band loss must be excluded, got %v", points)
	}
	if points[0].Value < 0 {
		t.Fatalf("surviving point should be the revenue figure, got %v", points[0])
	}
}

func TestTinySynthesizedPayloadFallsToStock(t *testing.T) {
	gw := &fakeImageGateway{result: deck.ProviderResult{
		Status: deck.StatusSuccess, ProviderID: "openai", Payload: pngBytes(32), MimeType: "image/png",
	}}
	stock := &fakeStock{data: pngBytes(2048), mime: "image/jpeg", source: "openverse"}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 1, Title: "Vision"}
	asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutVision), nil)

	if asset == nil || asset.Kind != deck.AssetStockImage {
		t.Fatalf("tiny payload must fall to stock, got %+v", asset)
	}
	if asset.SourceProvider != "openverse" {
		t.Errorf("source %q", asset.SourceProvider)
	}
}

func TestTextualImageResponseFallsToStock(t *testing.T) {
	textual := []byte("Here is a description of a nice image instead of the image itself, with enough padding to clear the minimum size threshold for this test case.")
	gw := &fakeImageGateway{result: deck.ProviderResult{
		Status: deck.StatusSuccess, ProviderID: "gemini", Payload: textual, MimeType: "image/png",
	}}
	stock := &fakeStock{data: pngBytes(2048), mime: "image/png", source: "scrape"}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 2, Title: "Our Solution"}
	asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutSolution), nil)

	if asset == nil || asset.Kind != deck.AssetStockImage {
		t.Fatalf("textual payload must fall to stock, got %+v", asset)
	}
}

func TestStockQueryDerivedFromSlide(t *testing.T) {
	gw := &fakeImageGateway{result: deck.ProviderResult{Status: deck.StatusPermanentError}}
	stock := &fakeStock{data: pngBytes(2048), mime: "image/png", source: "pexels"}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 6, Title: "Traction"}
	asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutDefault), nil)

	if asset == nil || asset.Kind != deck.AssetStockImage {
		t.Fatalf("expected stock photo, got %+v", asset)
	}
	if len(stock.queries) != 1 || stock.queries[0] != "growth success metrics" {
		t.Fatalf("stock queried with %v", stock.queries)
	}
}

func TestStockCacheHitSkipsSecondFetch(t *testing.T) {
	gw := &fakeImageGateway{result: deck.ProviderResult{Status: deck.StatusPermanentError}}
	stock := &fakeStock{data: pngBytes(2048), mime: "image/png", source: "pexels"}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 6, Title: "Team"}
	layout := layoutOf(deck.LayoutTeam)

	first := g.GenerateAsset(context.Background(), slide, layout, nil)
	second := g.GenerateAsset(context.Background(), slide, layout, nil)

	if first == nil || second == nil {
		t.Fatal("expected stock assets on both runs")
	}
	if stock.callCount() != 1 {
		t.Fatalf("stock fetched %d times, want 1", stock.callCount())
	}
	if !second.CacheHit || second.Path != first.Path {
		t.Errorf("second asset should be the cached one: %+v", second)
	}
}

func TestIncludeImagesFalseSkipsPhotographicRules(t *testing.T) {
	cfg := defaultCfg()
	cfg.IncludeImages = false
	gw := &fakeImageGateway{result: goodImageResult()}
	stock := &fakeStock{data: pngBytes(2048), mime: "image/png", source: "pexels"}
	g := newTestGenerator(t, gw, stock, cfg)

	// Charts still render.
	chartSlide := deck.SlideContent{SlideNumber: 2, Title: "Traction", Metrics: map[string]float64{"Users": 1200}}
	if asset := g.GenerateAsset(context.Background(), chartSlide, layoutOf(deck.LayoutTraction), nil); asset == nil || asset.Kind != deck.AssetChart {
		t.Fatalf("charts must survive includeImages=false, got %+v", asset)
	}

	// Photographic rules are skipped entirely.
	textSlide := deck.SlideContent{SlideNumber: 3, Title: "Vision"}
	if asset := g.GenerateAsset(context.Background(), textSlide, layoutOf(deck.LayoutVision), nil); asset != nil {
		t.Fatalf("expected text-only slide, got %+v", asset)
	}
	if gw.callCount() != 0 || stock.callCount() != 0 {
		t.Error("no provider or stock calls allowed with images disabled")
	}
}

func TestEverythingFailingYieldsNoAsset(t *testing.T) {
	gw := &fakeImageGateway{result: deck.ProviderResult{Status: deck.StatusPermanentError}}
	stock := &fakeStock{err: fmt.Errorf("all stock sources failed")}
	g := newTestGenerator(t, gw, stock, defaultCfg())

	slide := deck.SlideContent{SlideNumber: 7, Title: "The Ask ($500K Seed)"}
	if asset := g.GenerateAsset(context.Background(), slide, layoutOf(deck.LayoutDefault), nil); asset != nil {
		t.Fatalf("expected nil asset, got %+v", asset)
	}
}

// Feature: visual-policy, Property 1: at most one asset per slide and
// rule precedence holds: a chart means no provider traffic, a stock
// photo means synthesis was tried first.
func TestProperty_PolicyPrecedence(t *testing.T) {
	outer := t
	rapid.Check(t, func(t *rapid.T) {
		layoutType := rapid.SampledFrom([]deck.LayoutType{
			deck.LayoutData, deck.LayoutFinancials, deck.LayoutTraction,
			deck.LayoutTitle, deck.LayoutSolution, deck.LayoutDefault,
		}).Draw(t, "layout")
		hasMetric := rapid.Bool().Draw(t, "hasMetric")
		synthOK := rapid.Bool().Draw(t, "synthOK")
		stockOK := rapid.Bool().Draw(t, "stockOK")
		includeImages := rapid.Bool().Draw(t, "includeImages")

		gwResult := deck.ProviderResult{Status: deck.StatusPermanentError}
		if synthOK {
			gwResult = goodImageResult()
		}
		gw := &fakeImageGateway{result: gwResult}
		stock := &fakeStock{err: fmt.Errorf("down")}
		if stockOK {
			stock = &fakeStock{data: pngBytes(2048), mime: "image/png", source: "pexels"}
		}

		cfg := defaultCfg()
		cfg.IncludeImages = includeImages
		store, err := cache.NewStore(outer.TempDir(), nil)
		if err != nil {
			t.Fatalf("cache store: %v", err)
		}
		g := NewGenerator(gw, stock, store, brand.NewKit("", "", "", ""), cfg, nil)

		slide := deck.SlideContent{SlideNumber: 1, Title: "Momentum"}
		if hasMetric {
			slide.Metrics = map[string]float64{"Users": 4200}
		}

		asset := g.GenerateAsset(context.Background(), slide, layoutOf(layoutType), nil)

		chartEligible := chartLayouts[layoutType] && hasMetric
		switch {
		case chartEligible:
			if asset == nil || asset.Kind != deck.AssetChart {
				t.Fatalf("chart eligible slide got %+v", asset)
			}
			if gw.callCount() != 0 || stock.callCount() != 0 {
				t.Fatal("chart must short-circuit provider traffic")
			}
		case !includeImages:
			if asset != nil {
				t.Fatalf("images disabled but got %+v", asset)
			}
		case synthOK:
			if asset == nil || asset.Kind != deck.AssetFullSlideImage {
				t.Fatalf("expected synthesized image, got %+v", asset)
			}
		case stockOK:
			if asset == nil || asset.Kind != deck.AssetStockImage {
				t.Fatalf("expected stock photo, got %+v", asset)
			}
			if gw.callCount() == 0 {
				t.Fatal("stock reached without trying synthesis first")
			}
		default:
			if asset != nil {
				t.Fatalf("expected text-only slide, got %+v", asset)
			}
		}
	})
}
