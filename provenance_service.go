package main

import (
	"context"

	"deckforge/cache"
)

// ProvenanceService owns the run history database. It is registered
// non-critical: decks still generate without it, runs just go
// unrecorded.
type ProvenanceService struct {
	path   string
	logger func(string)
	store  *cache.ProvenanceStore
}

// NewProvenanceService creates the service; Initialize opens the
// database.
func NewProvenanceService(path string, logger func(string)) *ProvenanceService {
	return &ProvenanceService{path: path, logger: logger}
}

// Name returns the service name
func (s *ProvenanceService) Name() string {
	return "provenance"
}

// Initialize opens the database and applies pending migrations.
func (s *ProvenanceService) Initialize(ctx context.Context) error {
	store, err := cache.OpenProvenance(s.path, s.logger)
	if err != nil {
		return WrapError("provenance", "Initialize", err)
	}
	s.store = store
	return nil
}

// Shutdown closes the database.
func (s *ProvenanceService) Shutdown() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Store returns the run database, nil when unavailable.
func (s *ProvenanceService) Store() *cache.ProvenanceStore {
	return s.store
}
