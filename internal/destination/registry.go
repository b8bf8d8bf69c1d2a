package destination

import (
	"fmt"
	"sort"
)

// Registry maps destination slugs to compiled destinations. It is an
// explicit value constructed at process startup and passed by
// reference; there is no ambient global registry. Registration happens
// before serving traffic, after which the registry is read-only.
type Registry struct {
	destinations map[string]*Destination
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{destinations: make(map[string]*Destination)}
}

// Register adds a compiled destination. Duplicate slugs are rejected.
func (r *Registry) Register(d *Destination) error {
	if _, exists := r.destinations[d.Slug()]; exists {
		return fmt.Errorf("destination %q already registered", d.Slug())
	}
	r.destinations[d.Slug()] = d
	return nil
}

// Lookup resolves a destination by slug.
func (r *Registry) Lookup(slug string) (*Destination, bool) {
	d, ok := r.destinations[slug]
	return d, ok
}

// Slugs lists registered destination slugs in sorted order.
func (r *Registry) Slugs() []string {
	slugs := make([]string, 0, len(r.destinations))
	for slug := range r.destinations {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
