package provider

import (
	"context"
	"fmt"
	"sync"
)

// Pool bounds in-flight external calls so the chain respects vendor
// rate limits. Shrink halves the limit down to one, serializing
// remaining calls instead of aborting when quotas run out.
type Pool struct {
	mu      sync.Mutex
	limit   int
	busy    int
	changed chan struct{}
	logger  func(string)
}

// NewPool creates a pool admitting at most limit concurrent calls.
func NewPool(limit int, logger func(string)) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{
		limit:   limit,
		changed: make(chan struct{}),
		logger:  logger,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.busy < p.limit {
			p.busy++
			p.mu.Unlock()
			return nil
		}
		ch := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Release frees a slot taken by Acquire.
func (p *Pool) Release() {
	p.mu.Lock()
	if p.busy > 0 {
		p.busy--
	}
	p.notifyLocked()
	p.mu.Unlock()
}

// Shrink halves the concurrency limit, flooring at one.
func (p *Pool) Shrink() {
	p.mu.Lock()
	if p.limit > 1 {
		p.limit /= 2
		if p.limit < 1 {
			p.limit = 1
		}
		if p.logger != nil {
			p.logger(fmt.Sprintf("[POOL] Concurrency reduced to %d after quota exhaustion", p.limit))
		}
	}
	p.notifyLocked()
	p.mu.Unlock()
}

// Limit returns the current concurrency limit.
func (p *Pool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// notifyLocked wakes every waiter so they can re-check the limit.
// Callers must hold mu.
func (p *Pool) notifyLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}
