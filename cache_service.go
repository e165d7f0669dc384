package main

import (
	"context"

	"deckforge/cache"
)

// CacheService owns the text and asset cache every run reads through.
type CacheService struct {
	dir    string
	logger func(string)
	store  *cache.Store
}

// NewCacheService creates the service; Initialize opens the store.
func NewCacheService(dir string, logger func(string)) *CacheService {
	return &CacheService{dir: dir, logger: logger}
}

// Name returns the service name
func (s *CacheService) Name() string {
	return "cache"
}

// Initialize opens the cache directory, creating it when missing.
func (s *CacheService) Initialize(ctx context.Context) error {
	store, err := cache.NewStore(s.dir, s.logger)
	if err != nil {
		return WrapError("cache", "Initialize", err)
	}
	s.store = store
	return nil
}

// Shutdown is a no-op; the store holds no open handles between calls.
func (s *CacheService) Shutdown() error {
	return nil
}

// Store returns the opened cache store, nil before Initialize.
func (s *CacheService) Store() *cache.Store {
	return s.store
}
