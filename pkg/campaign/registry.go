package campaign

import (
	"fmt"
	"sync"
)

// Registry holds the loaded campaigns and provides thread-safe access.
type Registry struct {
	mu        sync.RWMutex
	campaigns map[string]*Campaign
	order     []string // insertion order for stable listing
}

// NewRegistry creates an empty campaign registry.
func NewRegistry() *Registry {
	return &Registry{
		campaigns: make(map[string]*Campaign),
	}
}

// Add registers a campaign. Fails if the ID is already present.
func (r *Registry) Add(c *Campaign) error {
	if c == nil {
		return fmt.Errorf("cannot register nil campaign")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s is already registered", c.ID)
	}

	r.campaigns[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

// Get returns the campaign with the given ID, or nil when unknown.
func (r *Registry) Get(id string) *Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.campaigns[id]
}

// List returns all registered campaigns in insertion order.
func (r *Registry) List() []*Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Campaign, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.campaigns[id])
	}
	return out
}

// Count returns the number of registered campaigns.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.campaigns)
}
