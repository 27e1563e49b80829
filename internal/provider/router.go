package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Purposes a provider can be bound to.
const (
	PurposeAgent     = "agent"
	PurposeNarration = "narration"
)

// Router manages multiple LLM providers and routes requests by purpose.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string   // purpose -> providerID
	fallbacks map[string][]string // purpose -> fallback provider chain
	defaults  string              // default provider ID
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider to the router.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// Bind associates a purpose with a specific provider.
func (r *Router) Bind(purpose, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[purpose] = providerID
}

// SetFallbacks configures fallback providers for a purpose.
func (r *Router) SetFallbacks(purpose string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[purpose] = providerIDs
}

// Route sends a chat request through the provider bound to purpose.
func (r *Router) Route(ctx context.Context, purpose string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := r.getProvider(purpose)
	if primary == nil {
		return nil, fmt.Errorf("no provider available for %s", purpose)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("purpose", purpose), zap.String("provider", primary.ID()), zap.Error(err))

	// The requested model names a model of the primary provider; each
	// fallback uses its own configured model instead.
	fbReq := *req
	fbReq.Model = ""
	for _, fbID := range r.fallbacks[purpose] {
		fb, ok := r.providers[fbID]
		if !ok {
			continue
		}
		attempt := fbReq
		resp, err = fb.Chat(ctx, &attempt)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fbID), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed for %s: %w", purpose, err)
}

func (r *Router) getProvider(purpose string) Provider {
	if pid, ok := r.bindings[purpose]; ok {
		if p, ok := r.providers[pid]; ok {
			return p
		}
	}
	if p, ok := r.providers[r.defaults]; ok {
		return p
	}
	return nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns all registered providers.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result
}

// Generator returns a Generator that routes every prompt for purpose.
func (r *Router) Generator(purpose string) Generator {
	return &routedGenerator{router: r, purpose: purpose}
}

type routedGenerator struct {
	router  *Router
	purpose string
}

func (g *routedGenerator) Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	resp, err := g.router.Route(ctx, g.purpose, requestFromSampling(prompt, cfg))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
