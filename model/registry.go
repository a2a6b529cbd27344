// Package model holds the immutable model-metadata registry and the
// quota checker consulted at admission time.
package model

// Info is the registered metadata for one model name.
type Info struct {
	Name          string `json:"name" yaml:"name"`
	Provider      string `json:"provider" yaml:"provider"`
	Tier          string `json:"tier" yaml:"tier"`
	ContextWindow int    `json:"context_window" yaml:"context_window"`
}

// Registry is a read-only lookup table of model metadata. It is built
// once at startup and never mutated afterwards, so it is safe for
// concurrent use without locking.
type Registry struct {
	models      map[string]Info
	defaultName string
	defaultTier string
}

// NewRegistry builds a registry from the configured model list. The
// first model is the default when defaultName is empty.
func NewRegistry(defaultName string, models []Info) *Registry {
	r := &Registry{
		models:      make(map[string]Info, len(models)),
		defaultName: defaultName,
		defaultTier: "t2",
	}
	for _, m := range models {
		r.models[m.Name] = m
		if r.defaultName == "" {
			r.defaultName = m.Name
		}
	}
	return r
}

// Lookup returns the metadata registered for a model name.
func (r *Registry) Lookup(name string) (Info, bool) {
	info, ok := r.models[name]
	return info, ok
}

// Default returns the default model name.
func (r *Registry) Default() string {
	return r.defaultName
}

// TierOf returns the tier of a model name, falling back to the default
// tier for unregistered names so the quota gate can still run first.
func (r *Registry) TierOf(name string) string {
	if info, ok := r.models[name]; ok && info.Tier != "" {
		return info.Tier
	}
	return r.defaultTier
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}
