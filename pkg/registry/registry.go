package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Model describes one backend model known to the registry.
type Model struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Provider      string   `yaml:"provider"`
	Category      Category `yaml:"category"`
	ContextWindow int      `yaml:"context_window"`
	// Priority ranks models within a category; higher is preferred.
	Priority int `yaml:"priority"`
	// Fallback names the model substituted when this one is unavailable.
	Fallback  string `yaml:"fallback,omitempty"`
	Available bool   `yaml:"-"`
}

// Catalog is the on-disk shape of the model registry.
type Catalog struct {
	Default string  `yaml:"default"`
	Models  []Model `yaml:"models"`
}

// Registry is a read-only view over the model catalog. Availability is
// fixed at construction time from the configured providers.
type Registry struct {
	models    []Model
	byID      map[string]int
	defaultID string
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &cat, nil
}

// New builds a registry from a catalog. hasProvider reports whether a
// provider is configured; models of unconfigured providers are marked
// unavailable. The returned registry always has an available default,
// promoting the best available model if the declared default is not.
func New(cat *Catalog, hasProvider func(name string) bool) (*Registry, error) {
	if cat == nil || len(cat.Models) == 0 {
		return nil, fmt.Errorf("catalog has no models")
	}
	if hasProvider == nil {
		hasProvider = func(string) bool { return true }
	}

	r := &Registry{byID: make(map[string]int, len(cat.Models))}
	for _, m := range cat.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog model with empty id")
		}
		if !m.Category.Valid() {
			return nil, fmt.Errorf("model %s: invalid category %q", m.ID, m.Category)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %s", m.ID)
		}
		m.Available = hasProvider(m.Provider)
		r.byID[m.ID] = len(r.models)
		r.models = append(r.models, m)
	}

	r.defaultID = cat.Default
	def, ok := r.byID[r.defaultID]
	if !ok || !r.models[def].Available {
		promoted := r.bestAvailable()
		if promoted == "" {
			return nil, fmt.Errorf("no available models for any configured provider")
		}
		r.defaultID = promoted
	}
	return r, nil
}

// Get returns the model with the given id.
func (r *Registry) Get(id string) (Model, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Model{}, false
	}
	return r.models[idx], true
}

// Available reports whether the model exists and its provider is configured.
func (r *Registry) Available(id string) bool {
	m, ok := r.Get(id)
	return ok && m.Available
}

// ByCategory returns the available models for a category, best priority first.
func (r *Registry) ByCategory(cat Category) []Model {
	var out []Model
	for _, m := range r.models {
		if m.Category == cat && m.Available {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Default returns the registry's default model. It is always available.
func (r *Registry) Default() Model {
	m, _ := r.Get(r.defaultID)
	return m
}

// FallbackFor returns the substitute for an unavailable model: its
// declared fallback if that is available, otherwise the default.
func (r *Registry) FallbackFor(id string) Model {
	m, ok := r.Get(id)
	if ok && m.Fallback != "" {
		if fb, found := r.Get(m.Fallback); found && fb.Available {
			return fb
		}
	}
	return r.Default()
}

// All returns every model in catalog order, including unavailable ones.
func (r *Registry) All() []Model {
	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}

func (r *Registry) bestAvailable() string {
	best := -1
	for i, m := range r.models {
		if !m.Available {
			continue
		}
		if best == -1 || m.Priority > r.models[best].Priority {
			best = i
		}
	}
	if best == -1 {
		return ""
	}
	return r.models[best].ID
}
