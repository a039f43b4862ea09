package resolvers

import (
	"context"
	"fmt"

	"iptv-bridge-go/pkg/logging"
)

// Pipeline coordinates one VOD resolution request end to end: provider
// lookup, availability probe, resolve, and the terminal zero-URL check.
type Pipeline struct {
	registry *Registry
	log      *logging.Logger
}

// NewPipeline creates the pipeline over a fixed registry.
func NewPipeline(registry *Registry, log *logging.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		log:      log.WithComponent("pipeline"),
	}
}

// Registry exposes the provider table for listing endpoints.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Play resolves a query through the named provider.
func (p *Pipeline) Play(ctx context.Context, providerID string, q Query) (*Resolved, error) {
	provider, ok := p.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	if !provider.Available() {
		return nil, &UnavailableError{Provider: provider.ID(), Binary: provider.Requires()}
	}

	p.log.Info("resolving", "provider", providerID, "query", q.Text)
	res, err := provider.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(res.URLs) == 0 {
		return nil, ErrNoPlayableURLs
	}
	return res, nil
}
