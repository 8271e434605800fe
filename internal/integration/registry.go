package integration

import (
	"sort"
	"sync"
)

// Registry holds the available integrations keyed by domain.
// It is populated once at startup and read-only afterwards, but guarded
// anyway since the API serves lookups concurrently.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]Integration
}

// NewRegistry creates an empty integration registry.
func NewRegistry() *Registry {
	return &Registry{integrations: make(map[string]Integration)}
}

// Register adds an integration. Later registrations for the same
// domain replace earlier ones.
func (r *Registry) Register(i Integration) {
	r.mu.Lock()
	r.integrations[i.Domain()] = i
	r.mu.Unlock()
}

// Get returns the integration for a domain.
// Returns ErrUnknownDomain when no integration is registered.
func (r *Registry) Get(domain string) (Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.integrations[domain]
	if !ok {
		return nil, ErrUnknownDomain
	}
	return i, nil
}

// Domains returns the registered domains in sorted order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.integrations))
	for d := range r.integrations {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
