package routing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"chatrelay/message"
	"chatrelay/models"
	"chatrelay/providers"
)

var ErrProviderNotConfigured = errors.New("provider not configured")

// Selection is the provider/model pair chosen for one turn
type Selection struct {
	Provider  models.ProviderType `json:"provider"`
	ModelID   string              `json:"model_id"`
	WebSearch bool                `json:"web_search"`
	// Coerced is set when the requested provider string was not recognized
	Coerced bool `json:"coerced,omitempty"`
}

// Select maps routing metadata to a selection. An absent provider or model
// takes the defaults; an unrecognized provider takes the fallback. Web
// search is only honoured for providers that can host the search tool.
func Select(meta *message.Metadata, fallback models.ProviderType) Selection {
	sel := Selection{
		Provider: models.DefaultProvider,
		ModelID:  models.DefaultModelID,
	}
	if meta == nil {
		return sel
	}

	if meta.ModelID != "" {
		sel.ModelID = meta.ModelID
	}
	if meta.Provider != "" {
		if p, ok := models.ParseProvider(meta.Provider); ok {
			sel.Provider = p
		} else {
			sel.Provider = fallback
			sel.Coerced = true
		}
	}
	sel.WebSearch = meta.UseWebSearch && sel.Provider.SupportsWebSearch()
	return sel
}

// Tools returns the hosted tools to attach for a selection
func (s Selection) Tools() []providers.Tool {
	if !s.WebSearch {
		return nil
	}
	return []providers.Tool{providers.WebSearchTool()}
}

// Router holds the provider table the relay dispatches through
type Router struct {
	// Providers (exported for health checker)
	Providers map[models.ProviderType]providers.Provider

	fallback    models.ProviderType
	deployments *models.DeploymentRegistry

	mu            sync.RWMutex
	healthChecker *HealthChecker
}

// NewRouter creates a router. fallback receives requests naming an unknown provider.
func NewRouter(fallback models.ProviderType, deployments *models.DeploymentRegistry) *Router {
	if deployments == nil {
		deployments = models.NewDeploymentRegistry()
	}
	return &Router{
		Providers:   make(map[models.ProviderType]providers.Provider),
		fallback:    fallback,
		deployments: deployments,
	}
}

// RegisterProvider registers a provider
func (r *Router) RegisterProvider(providerType models.ProviderType, provider providers.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Providers[providerType] = provider
}

// Provider returns the client registered for a provider
func (r *Router) Provider(providerType models.ProviderType) (providers.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.Providers[providerType]
	return p, ok
}

// Configured lists providers with a registered client, in dispatch order
func (r *Router) Configured() []models.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ProviderType
	for _, p := range models.AllProviders {
		if _, ok := r.Providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Deployments returns the registry backing this router
func (r *Router) Deployments() *models.DeploymentRegistry {
	return r.deployments
}

// Fallback returns the provider used for unrecognized provider strings
func (r *Router) Fallback() models.ProviderType {
	return r.fallback
}

// Route makes a routing decision for the last message's metadata
func (r *Router) Route(requestID string, meta *message.Metadata) (*RoutingDecision, error) {
	return r.RouteSelection(requestID, Select(meta, r.fallback))
}

// RouteSelection makes a routing decision for an explicit selection
func (r *Router) RouteSelection(requestID string, sel Selection) (*RoutingDecision, error) {
	client, ok := r.Provider(sel.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, sel.Provider)
	}

	return &RoutingDecision{
		RequestID: requestID,
		Selection: sel,
		Client:    client,
		Tools:     sel.Tools(),
		Timestamp: time.Now(),
	}, nil
}

// RoutingDecision represents a routing choice for one request
type RoutingDecision struct {
	RequestID string             `json:"request_id"`
	Selection Selection          `json:"selection"`
	Client    providers.Provider `json:"-"`
	Tools     []providers.Tool   `json:"tools,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
