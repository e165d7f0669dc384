package provider

import (
	"context"
	"fmt"
	"time"

	"deckforge/cache"
	"deckforge/deck"
)

type operation string

const (
	opRewriteText   operation = "rewrite_text"
	opGenerateImage operation = "generate_image"
)

// Gateway runs one operation against an ordered provider chain with
// quota-aware fallover and a persistent result cache. A cached result
// is returned without touching any provider, so repeating a run with
// the same inputs and provider configuration performs no network calls.
type Gateway struct {
	chain      []Provider
	pool       *Pool
	store      *cache.Store
	configHash string
	retryDelay time.Duration
	logger     func(string)
}

func NewGateway(chain []Provider, pool *Pool, store *cache.Store, configHash string, retryDelay time.Duration, logger func(string)) *Gateway {
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Gateway{
		chain:      chain,
		pool:       pool,
		store:      store,
		configHash: configHash,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// RewriteText runs the rewrite operation through the chain. The result
// is keyed on the prompt pair and the provider configuration, so edits
// to either produce fresh content while identical reruns stay local.
func (g *Gateway) RewriteText(ctx context.Context, req TextRequest) deck.ProviderResult {
	key := cache.Key(string(opRewriteText), g.configHash, req.System, req.Prompt)
	if text, providerID, ok := g.store.LookupText(key); ok {
		g.log(fmt.Sprintf("[GATEWAY] Cache hit for rewrite_text (provider %s)", providerID))
		return deck.ProviderResult{
			Status:     deck.StatusSuccess,
			ProviderID: providerID,
			Text:       text,
			CacheHit:   true,
		}
	}
	result := g.run(ctx, opRewriteText, func(ctx context.Context, p Provider) (deck.ProviderResult, error) {
		text, err := p.RewriteText(ctx, req)
		if err != nil {
			return deck.ProviderResult{}, err
		}
		return deck.ProviderResult{
			Status:     deck.StatusSuccess,
			ProviderID: p.ID(),
			Text:       text,
		}, nil
	})
	if result.OK() {
		if err := g.store.SaveText(key, result.ProviderID, result.Text); err != nil {
			g.log(fmt.Sprintf("[GATEWAY] Failed to cache rewrite_text result: %v", err))
		}
	}
	return result
}

// GenerateImage runs the image operation through the chain. Successful
// payloads are persisted in the asset cache and the result carries the
// on-disk path alongside the raw bytes.
func (g *Gateway) GenerateImage(ctx context.Context, req ImageRequest) deck.ProviderResult {
	key := cache.Key(string(opGenerateImage), g.configHash, req.Prompt, req.Size)
	if path, data, info, ok := g.store.LookupAsset(key); ok {
		g.log(fmt.Sprintf("[GATEWAY] Cache hit for generate_image (provider %s)", info.ProviderID))
		return deck.ProviderResult{
			Status:     deck.StatusSuccess,
			ProviderID: info.ProviderID,
			Payload:    data,
			MimeType:   info.MimeType,
			Path:       path,
			CacheHit:   true,
		}
	}
	result := g.run(ctx, opGenerateImage, func(ctx context.Context, p Provider) (deck.ProviderResult, error) {
		data, mimeType, err := p.GenerateImage(ctx, req)
		if err != nil {
			return deck.ProviderResult{}, err
		}
		return deck.ProviderResult{
			Status:     deck.StatusSuccess,
			ProviderID: p.ID(),
			Payload:    data,
			MimeType:   mimeType,
		}, nil
	})
	if result.OK() {
		path, err := g.store.SaveAsset(key, result.Payload, result.MimeType, result.ProviderID)
		if err != nil {
			g.log(fmt.Sprintf("[GATEWAY] Failed to cache generate_image result: %v", err))
		} else {
			result.Path = path
		}
	}
	return result
}

// run walks the chain in order until a provider succeeds or every
// eligible provider has been ruled out. Quota exhaustion moves on
// immediately and shrinks the pool; a transient failure earns exactly
// one retry after the backoff delay; everything else moves on.
func (g *Gateway) run(ctx context.Context, op operation, attempt func(context.Context, Provider) (deck.ProviderResult, error)) deck.ProviderResult {
	for _, p := range g.chain {
		if !supports(p, op) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result, err := g.attemptOnce(ctx, p, attempt)
		if err == nil {
			g.log(fmt.Sprintf("[GATEWAY] %s succeeded on provider %s", op, p.ID()))
			return result
		}

		switch KindOf(err) {
		case KindQuota:
			g.log(fmt.Sprintf("[GATEWAY] Provider %s quota exhausted, falling over: %v", p.ID(), err))
			g.pool.Shrink()
			continue
		case KindTransient:
			g.log(fmt.Sprintf("[GATEWAY] Provider %s transient failure, retrying once: %v", p.ID(), err))
			if !g.sleep(ctx) {
				break
			}
			result, err = g.attemptOnce(ctx, p, attempt)
			if err == nil {
				g.log(fmt.Sprintf("[GATEWAY] %s succeeded on provider %s after retry", op, p.ID()))
				return result
			}
			g.log(fmt.Sprintf("[GATEWAY] Provider %s failed after retry, falling over: %v", p.ID(), err))
			if KindOf(err) == KindQuota {
				g.pool.Shrink()
			}
		default:
			g.log(fmt.Sprintf("[GATEWAY] Provider %s permanent failure, falling over: %v", p.ID(), err))
		}
	}
	g.log(fmt.Sprintf("[GATEWAY] All providers exhausted for %s", op))
	return deck.ProviderResult{Status: deck.StatusPermanentError}
}

func (g *Gateway) attemptOnce(ctx context.Context, p Provider, attempt func(context.Context, Provider) (deck.ProviderResult, error)) (deck.ProviderResult, error) {
	if err := g.pool.Acquire(ctx); err != nil {
		return deck.ProviderResult{}, err
	}
	defer g.pool.Release()
	return attempt(ctx, p)
}

// sleep waits out the retry delay, reporting false if the context ends
// first.
func (g *Gateway) sleep(ctx context.Context) bool {
	timer := time.NewTimer(g.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func supports(p Provider, op operation) bool {
	switch op {
	case opRewriteText:
		return p.SupportsTextRewrite()
	case opGenerateImage:
		return p.SupportsImageGeneration()
	}
	return false
}

func (g *Gateway) log(message string) {
	if g.logger != nil {
		g.logger(message)
	}
}
