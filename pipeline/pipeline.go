package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"deckforge/brand"
	"deckforge/cache"
	"deckforge/config"
	"deckforge/deck"
	"deckforge/enhance"
	"deckforge/export"
	"deckforge/layout"
	"deckforge/provider"
	"deckforge/visual"
)

// Services bundles the stage implementations one pipeline runs with.
// Wire builds the production set from configuration; tests substitute
// stages backed by fakes.
type Services struct {
	Enhancer   *enhance.Orchestrator
	Classifier *layout.Classifier
	Visuals    *visual.Generator
	Assembler  *export.Assembler
	Store      *cache.Store
	Provenance *cache.ProvenanceStore // nil disables run recording
}

// Pipeline executes deck generation runs. All collaborators are held
// explicitly; nothing lives in package state.
type Pipeline struct {
	cfg      config.Config
	services Services
	logger   func(string)
}

// New creates a pipeline over an already wired service set.
func New(cfg config.Config, services Services, logger func(string)) *Pipeline {
	if logger == nil {
		logger = func(string) {}
	}
	return &Pipeline{cfg: cfg, services: services, logger: logger}
}

// Request is one deck generation job.
type Request struct {
	Outline  *deck.Outline
	Format   deck.ArtifactFormat
	OutPath  string
	Progress ProgressCallback // optional
}

// Result reports a finished run.
type Result struct {
	RunID      string                 `json:"run_id"`
	Artifact   deck.Artifact          `json:"artifact"`
	Provenance []deck.SlideProvenance `json:"provenance"`
}

// Run drives one outline through enhancement, layout, visuals, and
// assembly. Every stage before assembly degrades on failure; the only
// fatal error class is the artifact write itself.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Outline == nil {
		return nil, errors.New("no outline given")
	}
	if err := req.Outline.Validate(); err != nil {
		return nil, err
	}
	if req.OutPath == "" {
		return nil, errors.New("no output path given")
	}
	if req.Format == "" {
		req.Format = deck.FormatNativeSlides
	}

	runID := uuid.New().String()
	const total = 5
	report := func(stage string, progress int, message string, step int) {
		if req.Progress != nil {
			req.Progress(NewProgressUpdate(stage, progress, message, step, total))
		}
	}

	p.logger(fmt.Sprintf("[PIPELINE] Run %s: %d slides, format %s, output %s",
		runID, len(req.Outline.Slides), req.Format, req.OutPath))
	report(StageOutline, 5, fmt.Sprintf("Validated outline with %d slides", len(req.Outline.Slides)), 1)

	slides := make([]deck.SlideContent, len(req.Outline.Slides))
	for i, s := range req.Outline.Slides {
		slides[i] = s.Clone()
	}
	deck.SortSlides(slides)

	report(StageEnhance, 15, "Enhancing slide copy", 2)
	enhanced := p.services.Enhancer.Enhance(ctx, req.Outline.Profile, slides)

	report(StageLayout, 35, "Classifying slide layouts", 3)
	prepared := make([]deck.Slide, len(enhanced))
	for i, s := range enhanced {
		prepared[i] = deck.Slide{
			Content: s,
			Layout:  p.services.Classifier.Classify(s.Title, s.BodyText, s.KeyPoints),
		}
	}

	report(StageVisual, 55, "Generating slide visuals", 4)
	p.generateVisuals(ctx, prepared, req.Outline.Profile)

	report(StageAssemble, 85, fmt.Sprintf("Assembling %s artifact", req.Format), 5)
	artifact, err := p.services.Assembler.Assemble(ctx, prepared, req.Outline.Profile, req.Format, req.OutPath)
	if err != nil {
		return nil, err
	}

	provenance := buildProvenance(prepared)
	p.logSummary(provenance)
	if p.services.Provenance != nil {
		if err := p.services.Provenance.SaveRun(runID, time.Now(), *artifact, provenance); err != nil {
			p.logger(fmt.Sprintf("[PIPELINE] Provenance save failed (%v), continuing", err))
		}
	}

	report(StageComplete, 100, fmt.Sprintf("Deck written to %s", artifact.FilePath), total)
	return &Result{RunID: runID, Artifact: *artifact, Provenance: provenance}, nil
}

// generateVisuals attaches at most one asset per slide. Slides run
// concurrently under a bounded semaphore; each gets its own timeout and
// degrades to text-only when it expires.
func (p *Pipeline) generateVisuals(ctx context.Context, prepared []deck.Slide, profile deck.CompanyProfile) {
	limit := p.cfg.MaxInFlight
	if limit <= 0 {
		limit = 1
	}
	timeout := time.Duration(p.cfg.SlideTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := range prepared {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			slideCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			asset := p.services.Visuals.GenerateAsset(slideCtx, prepared[i].Content, prepared[i].Layout, profile)
			if asset == nil && slideCtx.Err() != nil {
				p.logger(fmt.Sprintf("[PIPELINE] Slide %d: visual generation timed out, rendering text only",
					prepared[i].Content.SlideNumber))
			}
			prepared[i].Asset = asset
		}(i)
	}
	wg.Wait()
}

func buildProvenance(prepared []deck.Slide) []deck.SlideProvenance {
	out := make([]deck.SlideProvenance, len(prepared))
	for i, s := range prepared {
		rec := deck.SlideProvenance{
			SlideNumber: s.Content.SlideNumber,
			LayoutType:  s.Layout.LayoutType,
			EnhancedBy:  s.Content.EnhancedBy,
		}
		if s.Asset != nil {
			rec.AssetKind = s.Asset.Kind
			rec.AssetProvider = s.Asset.SourceProvider
			rec.CacheHit = s.Asset.CacheHit
		}
		out[i] = rec
	}
	return out
}

func (p *Pipeline) logSummary(provenance []deck.SlideProvenance) {
	for _, rec := range provenance {
		asset := string(rec.AssetKind)
		if asset == "" {
			asset = "none"
		}
		p.logger(fmt.Sprintf("[PIPELINE] Slide %d: layout=%s asset=%s provider=%s cache_hit=%t",
			rec.SlideNumber, rec.LayoutType, asset, rec.AssetProvider, rec.CacheHit))
	}
}

// ProvenancePath returns where a configuration keeps its run database.
func ProvenancePath(cfg config.Config) string {
	return filepath.Join(cfg.CacheDir, "deckforge.db")
}

// Wire builds the production service set for a configuration: provider
// chain, shared gateway and pool, cache store, stock sources, and the
// export assembler. The returned shutdown func releases held resources.
func Wire(ctx context.Context, cfg config.Config, logger func(string)) (Services, func(), error) {
	if logger == nil {
		logger = func(string) {}
	}
	store, err := cache.NewStore(cfg.CacheDir, logger)
	if err != nil {
		return Services{}, nil, fmt.Errorf("open cache: %w", err)
	}

	// Provenance is diagnostics, not output: a broken store downgrades
	// to unrecorded runs.
	var prov *cache.ProvenanceStore
	if p, err := cache.OpenProvenance(ProvenancePath(cfg), logger); err != nil {
		logger(fmt.Sprintf("[PIPELINE] Provenance store unavailable (%v), runs will not be recorded", err))
	} else {
		prov = p
	}

	services, err := BuildServices(ctx, cfg, store, prov, logger)
	if err != nil {
		if prov != nil {
			prov.Close()
		}
		return Services{}, nil, err
	}

	shutdown := func() {
		if services.Provenance != nil {
			services.Provenance.Close()
		}
	}
	return services, shutdown, nil
}

// BuildServices assembles the stage services over an already opened
// cache store and optional provenance store. Callers own both stores'
// lifecycles.
func BuildServices(ctx context.Context, cfg config.Config, store *cache.Store, prov *cache.ProvenanceStore, logger func(string)) (Services, error) {
	if logger == nil {
		logger = func(string) {}
	}
	pool := provider.NewPool(cfg.MaxInFlight, logger)
	hash := cfg.ContentHash()

	var chain []provider.Provider
	for _, pc := range cfg.Providers {
		switch pc.ID {
		case "openai":
			p, err := provider.NewOpenAIProvider(ctx, pc)
			if err != nil {
				return Services{}, fmt.Errorf("openai provider: %w", err)
			}
			chain = append(chain, p)
		case "anthropic":
			chain = append(chain, provider.NewAnthropicProvider(pc))
		case "gemini":
			chain = append(chain, provider.NewGeminiProvider(pc))
		default:
			logger(fmt.Sprintf("[PIPELINE] Unknown provider id %q ignored", pc.ID))
		}
	}
	chain = provider.OrderByPreference(chain, cfg.ProviderPreference)

	gateway := provider.NewGateway(chain, pool, store, hash,
		time.Duration(cfg.RetryDelayMs)*time.Millisecond, logger)

	var sources []provider.PhotoSource
	for _, sc := range cfg.StockSources {
		switch sc.ID {
		case "openverse":
			sources = append(sources, provider.NewOpenverseSource())
		case "pexels":
			sources = append(sources, provider.NewPexelsSource(sc.APIKey))
		case "scrape":
			sources = append(sources, provider.NewScrapeSource())
		default:
			logger(fmt.Sprintf("[PIPELINE] Unknown stock source id %q ignored", sc.ID))
		}
	}
	stock := provider.NewStockChain(sources, pool, cfg.MinImageBytes, logger)

	tpl := brand.TemplateByName(cfg.Template)
	kit := brand.NewKit(cfg.BrandColors.Primary, cfg.BrandColors.Secondary, cfg.LogoPath, cfg.FontPath)

	services := Services{
		Enhancer:   enhance.NewOrchestrator(gateway, cfg.FullRewriteEnabled, logger),
		Classifier: layout.NewClassifier(logger),
		Visuals: visual.NewGenerator(gateway, stock, store, kit, visual.GeneratorConfig{
			IncludeImages:   cfg.IncludeImages,
			MinImageBytes:   cfg.MinImageBytes,
			LossBandPercent: cfg.LossBandPercent,
			ConfigHash:      hash,
		}, logger),
		Assembler:  export.NewAssembler(tpl, kit, logger),
		Store:      store,
		Provenance: prov,
	}
	return services, nil
}
