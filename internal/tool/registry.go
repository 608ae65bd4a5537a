package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/synapserun/synapse/pkg/models"
)

// Registry is a name-indexed, insertion-ordered collection of tools. It
// is immutable after construction for any one agent: agents only read
// from a shared handle (spec.md 5, "no locks in hot paths" — the only
// synchronized structure in the hot path is this registry).
type Registry struct {
	mu      sync.RWMutex
	order   []string
	tools   map[string]Tool
	catalog string // cached catalog_text, invalidated on mutation
	dirty   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), dirty: true}
}

// Register adds tool under its own metadata name. It fails if a tool
// with that name is already registered (L3: registering the same name
// twice is rejected).
func (r *Registry) Register(t Tool) error {
	name := t.Metadata().Name
	if name == "" {
		return fmt.Errorf("tool: cannot register a tool with an empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool: %q is already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	r.dirty = true
	return nil
}

// Unregister removes a tool by name. It is a no-op if the name is
// unknown.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.dirty = true
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool's metadata in insertion order (stable for
// prompt reproducibility).
func (r *Registry) List() []models.ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolMetadata, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n].Metadata())
	}
	return out
}

// Subset returns a new Registry containing only the named tools, in the
// order given, skipping names that are not registered. Used by
// SpecializedAgent to scope a shared registry down to the tools named
// in its AgentConfig.
func (r *Registry) Subset(names []string) *Registry {
	sub := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			_ = sub.Register(t)
		}
	}
	return sub
}

// CatalogText renders a stable, human/LLM-readable description of all
// registered tools for embedding in an agent's system prompt. The
// rendering is cached and only recomputed after a Register/Unregister.
func (r *Registry) CatalogText() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return r.catalog
	}

	var b strings.Builder
	if len(r.order) == 0 {
		b.WriteString("(no tools available)")
	}
	for i, name := range r.order {
		if i > 0 {
			b.WriteString("\n")
		}
		md := r.tools[name].Metadata()
		fmt.Fprintf(&b, "- %s: %s", md.Name, md.Description)
		for _, p := range md.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "\n    %s (%s, %s): %s", p.Name, p.Type, req, p.Description)
		}
	}
	r.catalog = b.String()
	r.dirty = false
	return r.catalog
}
