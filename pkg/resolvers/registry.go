package resolvers

// Registry is the fixed id→provider table. Built once at startup and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers in order.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[string]Provider, len(providers)),
	}
	for _, p := range providers {
		r.order = append(r.order, p.ID())
		r.providers[p.ID()] = p
	}
	return r
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// All returns every provider in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}
