package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"deckforge/config"
	"deckforge/logger"
	"deckforge/pipeline"
)

// App is the facade one CLI invocation drives. It owns the logger, the
// configuration, and the service registry holding the cache, provenance,
// and generation services.
type App struct {
	ctx        context.Context
	cfg        config.Config
	registry   *ServiceRegistry
	cacheSvc   *CacheService
	provSvc    *ProvenanceService
	generation *GenerationService
	logger     *logger.Logger
}

// NewApp creates the application shell. Startup wires the services.
func NewApp() *App {
	return &App{logger: logger.NewLogger()}
}

// Log writes one line to the application log.
func (a *App) Log(message string) {
	a.logger.Log(message)
}

// LogPath returns the active log file, empty when file logging is off.
func (a *App) LogPath() string {
	return a.logger.Path()
}

// Startup validates the configuration and initializes every service.
// The cache and generation services are critical; provenance degrades
// to unrecorded runs when its database cannot open.
func (a *App) Startup(ctx context.Context, cfg config.Config) error {
	a.ctx = ctx
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return WrapError("App", "Startup", err)
	}
	a.cfg = cfg

	if err := a.logger.Init(filepath.Join(cfg.CacheDir, "logs")); err != nil {
		// Generation works without a log file; say so once on stderr.
		fmt.Fprintf(os.Stderr, "warning: log file unavailable: %v\n", err)
	}

	a.registry = NewServiceRegistry(ctx, a.Log)
	a.cacheSvc = NewCacheService(cfg.CacheDir, a.Log)
	a.provSvc = NewProvenanceService(pipeline.ProvenancePath(cfg), a.Log)
	a.generation = NewGenerationService(cfg, a.cacheSvc, a.provSvc, a.Log)

	if err := a.registry.RegisterCritical(a.cacheSvc); err != nil {
		return err
	}
	if err := a.registry.Register(a.provSvc); err != nil {
		return err
	}
	if err := a.registry.RegisterCritical(a.generation); err != nil {
		return err
	}
	if err := a.registry.InitializeAll(); err != nil {
		return err
	}

	a.Log(fmt.Sprintf("[STARTUP] deckforge ready: template=%s providers=%d stock_sources=%d cache=%s",
		cfg.Template, len(cfg.Providers), len(cfg.StockSources), cfg.CacheDir))
	return nil
}

// Config returns the normalized configuration the app started with.
func (a *App) Config() config.Config {
	return a.cfg
}

// GeneratePresentation runs one outline through the pipeline.
func (a *App) GeneratePresentation(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	if a.generation == nil {
		return nil, WrapError("App", "GeneratePresentation", errors.New("app not started"))
	}
	res, err := a.generation.Run(ctx, req)
	if err != nil {
		return nil, WrapError("App", "GeneratePresentation", err)
	}
	return res, nil
}

// Shutdown stops all services in reverse order and closes the log
// last, so shutdown itself stays observable.
func (a *App) Shutdown() {
	if a.registry != nil {
		a.registry.ShutdownAll()
	}
	a.logger.Close()
}
