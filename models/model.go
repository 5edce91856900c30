package models

import (
	"sync"
)

const (
	// DefaultModelID is used when a request names no model
	DefaultModelID = "gpt-4o-mini"
	// DefaultProvider is used when a request names no provider
	DefaultProvider = ProviderOpenAI
)

// Model is an entry of the selectable model catalogue
type Model struct {
	ID       string       `json:"id" yaml:"id"`             // e.g., "gpt-5-mini"
	Name     string       `json:"name" yaml:"name"`         // Display name
	Provider ProviderType `json:"provider" yaml:"provider"` // Upstream that serves it

	Capabilities ModelCapabilities `json:"capabilities" yaml:"capabilities"`

	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ModelCapabilities defines what a model can do
type ModelCapabilities struct {
	ContextWindow int `json:"context_window,omitempty" yaml:"context_window"`

	SupportsVision    bool `json:"supports_vision" yaml:"supports_vision"`
	SupportsReasoning bool `json:"supports_reasoning" yaml:"supports_reasoning"`
	SupportsWebSearch bool `json:"supports_web_search" yaml:"supports_web_search"`

	TokenizerType string `json:"tokenizer_type,omitempty" yaml:"tokenizer_type"`
}

// ModelRegistry holds the catalogue in registration order
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]*Model
	order  []string
}

// NewModelRegistry creates a new model registry
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*Model),
	}
}

// Register adds a model to the registry, replacing any entry with the same ID
func (r *ModelRegistry) Register(model *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[model.ID]; !exists {
		r.order = append(r.order, model.ID)
	}
	r.models[model.ID] = model
}

// Get retrieves a model by ID
func (r *ModelRegistry) Get(id string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, exists := r.models[id]
	return model, exists
}

// List returns all registered models in registration order
func (r *ModelRegistry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*Model, 0, len(r.order))
	for _, id := range r.order {
		models = append(models, r.models[id])
	}
	return models
}

// GetByProvider returns all models served by a provider
func (r *ModelRegistry) GetByProvider(provider ProviderType) []*Model {
	var models []*Model
	for _, model := range r.List() {
		if model.Provider == provider {
			models = append(models, model)
		}
	}
	return models
}

// First returns the first registered model, used as the UI's initial selection
func (r *ModelRegistry) First() (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.models[r.order[0]], true
}

// ProviderOf returns the provider serving a model id, or DefaultProvider when unknown
func (r *ModelRegistry) ProviderOf(id string) ProviderType {
	if model, ok := r.Get(id); ok {
		return model.Provider
	}
	return DefaultProvider
}
