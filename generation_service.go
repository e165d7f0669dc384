package main

import (
	"context"
	"errors"

	"deckforge/config"
	"deckforge/pipeline"
)

// GenerationService assembles the deck pipeline over the cache and
// provenance services and executes generation requests.
type GenerationService struct {
	cfg      config.Config
	cacheSvc *CacheService
	provSvc  *ProvenanceService
	logger   func(string)
	pipeline *pipeline.Pipeline
}

// NewGenerationService creates the service; Initialize builds the
// pipeline, so both stores must initialize first.
func NewGenerationService(cfg config.Config, cacheSvc *CacheService, provSvc *ProvenanceService, logger func(string)) *GenerationService {
	return &GenerationService{
		cfg:      cfg,
		cacheSvc: cacheSvc,
		provSvc:  provSvc,
		logger:   logger,
	}
}

// Name returns the service name
func (s *GenerationService) Name() string {
	return "generation"
}

// Initialize wires the provider chain, stock sources, and export
// assembler into a pipeline. A missing provenance store is tolerated.
func (s *GenerationService) Initialize(ctx context.Context) error {
	services, err := pipeline.BuildServices(ctx, s.cfg, s.cacheSvc.Store(), s.provSvc.Store(), s.logger)
	if err != nil {
		return WrapError("generation", "Initialize", err)
	}
	s.pipeline = pipeline.New(s.cfg, services, s.logger)
	return nil
}

// Shutdown is a no-op; the stores it builds on are shut down by their
// owning services.
func (s *GenerationService) Shutdown() error {
	return nil
}

// Run executes one generation request.
func (s *GenerationService) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	if s.pipeline == nil {
		return nil, WrapError("generation", "Run", errors.New("service not initialized"))
	}
	return s.pipeline.Run(ctx, req)
}
