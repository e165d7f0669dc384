package main

import (
	"context"
	"fmt"
	"sync"
)

// Service is the lifecycle every registered component implements.
type Service interface {
	// Name identifies the service in logs and errors.
	Name() string
	// Initialize runs the service's startup work. Called in
	// registration order after all construction is done.
	Initialize(ctx context.Context) error
	// Shutdown releases the service's resources.
	Shutdown() error
}

type serviceEntry struct {
	service  Service
	name     string
	critical bool // a failed critical service aborts startup
}

// ServiceRegistry manages service lifecycles: initialization in
// registration order, shutdown in reverse.
type ServiceRegistry struct {
	ctx      context.Context
	logger   func(string)
	services []serviceEntry
	byName   map[string]Service
	mu       sync.RWMutex
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry(ctx context.Context, logger func(string)) *ServiceRegistry {
	return &ServiceRegistry{
		ctx:      ctx,
		logger:   logger,
		services: make([]serviceEntry, 0),
		byName:   make(map[string]Service),
	}
}

// Register adds a non-critical service. Duplicate names are rejected.
func (r *ServiceRegistry) Register(svc Service) error {
	return r.register(svc, false)
}

// RegisterCritical adds a service whose initialization failure aborts
// startup.
func (r *ServiceRegistry) RegisterCritical(svc Service) error {
	return r.register(svc, true)
}

func (r *ServiceRegistry) register(svc Service, critical bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := svc.Name()
	if _, exists := r.byName[name]; exists {
		return WrapError("ServiceRegistry", "Register", fmt.Errorf("service %q already registered", name))
	}

	r.services = append(r.services, serviceEntry{
		service:  svc,
		name:     name,
		critical: critical,
	})
	r.byName[name] = svc
	return nil
}

// Get returns a service by name. Type assertions are the caller's job.
func (r *ServiceRegistry) Get(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.byName[name]
	return svc, ok
}

// InitializeAll initializes services in registration order. A failed
// critical service stops and returns the error; a failed non-critical
// service is logged and startup continues degraded.
func (r *ServiceRegistry) InitializeAll() error {
	r.mu.RLock()
	entries := make([]serviceEntry, len(r.services))
	copy(entries, r.services)
	r.mu.RUnlock()

	for _, entry := range entries {
		if err := entry.service.Initialize(r.ctx); err != nil {
			if entry.critical {
				r.logger(fmt.Sprintf("Critical service %q failed to initialize: %v", entry.name, err))
				return WrapError("ServiceRegistry", "InitializeAll", fmt.Errorf("critical service %q failed: %w", entry.name, err))
			}
			r.logger(fmt.Sprintf("Non-critical service %q failed to initialize (degraded): %v", entry.name, err))
		}
	}
	return nil
}

// ShutdownAll shuts services down in reverse registration order.
// Individual shutdown errors are logged, never propagated, so one
// stubborn service cannot block the rest.
func (r *ServiceRegistry) ShutdownAll() {
	r.mu.RLock()
	entries := make([]serviceEntry, len(r.services))
	copy(entries, r.services)
	r.mu.RUnlock()

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if err := entry.service.Shutdown(); err != nil {
			r.logger(fmt.Sprintf("Service %q shutdown error: %v", entry.name, err))
		}
	}
}
