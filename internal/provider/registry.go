package provider

import (
	"fmt"
	"sort"
)

// Registry manages registered IssueTracker implementations by name.
type Registry struct {
	trackers map[string]IssueTracker
}

// NewRegistry creates an empty tracker registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]IssueTracker)}
}

// Register adds an IssueTracker, replacing any with the same Name().
func (r *Registry) Register(t IssueTracker) {
	r.trackers[t.Name()] = t
}

// Get looks up a registered tracker by its Name().
func (r *Registry) Get(name string) (IssueTracker, error) {
	t, ok := r.trackers[name]
	if !ok {
		return nil, fmt.Errorf("no registered tracker with name: %s", name)
	}
	return t, nil
}

// Names returns the registered tracker names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.trackers))
	for n := range r.trackers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
