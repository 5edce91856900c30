package models

import (
	"sync"
	"time"
)

// Deployment is a configured upstream endpoint for one provider
type Deployment struct {
	ID       string       `json:"id" yaml:"id"`
	Provider ProviderType `json:"provider" yaml:"provider"`

	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`

	// Runtime state
	Status DeploymentStatus `json:"status"`
}

// ProviderType is the closed set of upstreams a request can be routed to
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
	ProviderGroq      ProviderType = "groq"
)

// AllProviders lists every provider in dispatch order
var AllProviders = []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq}

// ParseProvider matches a provider string exactly. ok is false for anything
// outside the closed set.
func ParseProvider(s string) (ProviderType, bool) {
	for _, p := range AllProviders {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// SupportsWebSearch reports whether the hosted search tool can be attached
// to requests for this provider
func (p ProviderType) SupportsWebSearch() bool {
	return p == ProviderOpenAI
}

// EndpointConfig contains provider-specific endpoint configuration
type EndpointConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Auth AuthConfig `json:"auth" yaml:"auth"`

	CustomHeaders map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
}

// AuthConfig holds the upstream credential
type AuthConfig struct {
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`
	APIKey    string `json:"-"` // Never serialize
}

// DeploymentStatus tracks deployment health
type DeploymentStatus struct {
	Healthy          bool          `json:"healthy"`
	LastHealthCheck  time.Time     `json:"last_health_check"`
	ConsecutiveFails int           `json:"consecutive_fails"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	ResponseTime     time.Duration `json:"response_time"`
}

// DeploymentRegistry manages all deployments
type DeploymentRegistry struct {
	mu          sync.RWMutex
	deployments map[ProviderType]*Deployment
}

// NewDeploymentRegistry creates a new deployment registry
func NewDeploymentRegistry() *DeploymentRegistry {
	return &DeploymentRegistry{
		deployments: make(map[ProviderType]*Deployment),
	}
}

// Register adds a deployment, one per provider
func (r *DeploymentRegistry) Register(deployment *Deployment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deployments[deployment.Provider] = deployment
}

// Get retrieves the deployment for a provider
func (r *DeploymentRegistry) Get(provider ProviderType) (*Deployment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	deployment, exists := r.deployments[provider]
	return deployment, exists
}

// List returns deployments in dispatch order
func (r *DeploymentRegistry) List() []*Deployment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Deployment
	for _, p := range AllProviders {
		if d, ok := r.deployments[p]; ok {
			out = append(out, d)
		}
	}
	return out
}

// GetHealthy returns copies of all healthy deployments
func (r *DeploymentRegistry) GetHealthy() []Deployment {
	var deployments []Deployment
	for _, deployment := range r.Snapshot() {
		if deployment.Status.Healthy {
			deployments = append(deployments, deployment)
		}
	}
	return deployments
}

// UpdateStatus applies fn to a deployment's status under the registry lock
func (r *DeploymentRegistry) UpdateStatus(provider ProviderType, fn func(*DeploymentStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deployments[provider]; ok {
		fn(&d.Status)
	}
}

// Snapshot returns copies of all deployments, safe to serialize while
// health checks run
func (r *DeploymentRegistry) Snapshot() []Deployment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Deployment
	for _, p := range AllProviders {
		if d, ok := r.deployments[p]; ok {
			out = append(out, *d)
		}
	}
	return out
}
