package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chatrelay/models"
	"chatrelay/providers"
	"chatrelay/routing"
)

// Config represents the complete configuration
type Config struct {
	Models      []ModelConfig                `yaml:"models"`
	Deployments map[string]DeploymentConfig `yaml:"deployments"`
	Routing     RoutingConfig                `yaml:"routing"`
}

// ModelConfig from YAML
type ModelConfig struct {
	ID           string                   `yaml:"id"`
	Name         string                   `yaml:"name"`
	Provider     string                   `yaml:"provider"`
	Capabilities models.ModelCapabilities `yaml:"capabilities"`
	Tags         map[string]string        `yaml:"tags"`
}

// DeploymentConfig from YAML, keyed by provider name
type DeploymentConfig struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
}

// EndpointConfig from YAML
type EndpointConfig struct {
	BaseURL       string            `yaml:"base_url"`
	Timeout       string            `yaml:"timeout"`
	Auth          AuthConfig        `yaml:"auth"`
	CustomHeaders map[string]string `yaml:"custom_headers,omitempty"`
}

// AuthConfig from YAML
type AuthConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// RoutingConfig from YAML
type RoutingConfig struct {
	Fallback    string            `yaml:"fallback"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
}

// HealthCheckConfig from YAML
type HealthCheckConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Interval       string `yaml:"interval"`
	Timeout        string `yaml:"timeout"`
	CheckOnStartup bool   `yaml:"check_on_startup"`
}

// defaultKeyEnv names the API key variable of each provider
var defaultKeyEnv = map[models.ProviderType]string{
	models.ProviderOpenAI:    "OPENAI_API_KEY",
	models.ProviderAnthropic: "ANTHROPIC_API_KEY",
	models.ProviderGoogle:    "GOOGLE_API_KEY",
	models.ProviderGroq:      "GROQ_API_KEY",
}

// Default returns the built-in configuration: the default catalogue and one
// deployment per provider reading its key from the environment
func Default() *Config {
	cfg := &Config{
		Deployments: make(map[string]DeploymentConfig),
		Routing: RoutingConfig{
			Fallback: string(models.ProviderGroq),
			HealthCheck: HealthCheckConfig{
				Interval: "60s",
				Timeout:  "5s",
			},
		},
	}
	for _, m := range models.DefaultCatalogue() {
		cfg.Models = append(cfg.Models, ModelConfig{
			ID:           m.ID,
			Name:         m.Name,
			Provider:     string(m.Provider),
			Capabilities: m.Capabilities,
		})
	}
	for _, p := range models.AllProviders {
		cfg.Deployments[string(p)] = DeploymentConfig{
			Endpoint: EndpointConfig{Auth: AuthConfig{APIKeyEnv: defaultKeyEnv[p]}},
		}
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		d := cfg.Deployments[string(models.ProviderOpenAI)]
		d.Endpoint.BaseURL = base
		cfg.Deployments[string(models.ProviderOpenAI)] = d
	}
	return cfg
}

// LoadConfig loads configuration from YAML files. Files missing from
// configDir keep the built-in defaults for their section; a missing
// directory yields Default().
func LoadConfig(configDir string) (*Config, error) {
	config := Default()
	if configDir == "" {
		return config, nil
	}

	// Load models.yaml
	var modelsWrapper struct {
		Models []ModelConfig `yaml:"models"`
	}
	found, err := loadYAMLFile(filepath.Join(configDir, "models.yaml"), &modelsWrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to load models.yaml: %w", err)
	}
	if found && len(modelsWrapper.Models) > 0 {
		config.Models = modelsWrapper.Models
	}

	// Load providers.yaml
	var deploymentsWrapper struct {
		Deployments map[string]DeploymentConfig `yaml:"deployments"`
	}
	found, err = loadYAMLFile(filepath.Join(configDir, "providers.yaml"), &deploymentsWrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers.yaml: %w", err)
	}
	if found && len(deploymentsWrapper.Deployments) > 0 {
		config.Deployments = deploymentsWrapper.Deployments
	}

	// Load routing.yaml
	var routingWrapper struct {
		Routing RoutingConfig `yaml:"routing"`
	}
	found, err = loadYAMLFile(filepath.Join(configDir, "routing.yaml"), &routingWrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing.yaml: %w", err)
	}
	if found {
		config.Routing = routingWrapper.Routing
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects provider names outside the closed set
func (c *Config) Validate() error {
	for _, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("model without id")
		}
		if _, ok := models.ParseProvider(m.Provider); !ok {
			return fmt.Errorf("model %s: unknown provider %q", m.ID, m.Provider)
		}
	}
	for name := range c.Deployments {
		if _, ok := models.ParseProvider(name); !ok {
			return fmt.Errorf("deployment: unknown provider %q", name)
		}
	}
	if c.Routing.Fallback != "" {
		if _, ok := models.ParseProvider(c.Routing.Fallback); !ok {
			return fmt.Errorf("routing: unknown fallback provider %q", c.Routing.Fallback)
		}
	}
	return nil
}

// loadYAMLFile loads a YAML file into a structure after expanding
// environment variables. found is false when the file does not exist.
func loadYAMLFile(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, yaml.Unmarshal([]byte(expandEnv(string(data))), v)
}

// expandEnv expands environment variables in a string
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(key string) string {
		// Handle default values like ${VAR:-default}
		parts := strings.SplitN(key, ":-", 2)
		value := os.Getenv(parts[0])
		if value == "" && len(parts) > 1 {
			return parts[1]
		}
		return value
	})
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Catalogue builds the model registry in file order
func (c *Config) Catalogue() *models.ModelRegistry {
	registry := models.NewModelRegistry()
	for _, m := range c.Models {
		provider, _ := models.ParseProvider(m.Provider)
		registry.Register(&models.Model{
			ID:           m.ID,
			Name:         m.Name,
			Provider:     provider,
			Capabilities: m.Capabilities,
			Tags:         m.Tags,
		})
	}
	return registry
}

// ProviderFactory creates the client for a deployment
type ProviderFactory func(ctx context.Context, deployment *models.Deployment) (providers.Provider, error)

// DefaultFactory maps each provider to its client
func DefaultFactory(ctx context.Context, deployment *models.Deployment) (providers.Provider, error) {
	switch deployment.Provider {
	case models.ProviderOpenAI:
		if deployment.Endpoint.Auth.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", providers.ErrMissingAPIKey)
		}
		return providers.NewOpenAIResponsesProvider(deployment), nil
	case models.ProviderAnthropic:
		return providers.NewAnthropicProvider(deployment)
	case models.ProviderGoogle:
		return providers.NewGoogleProvider(ctx, deployment)
	case models.ProviderGroq:
		return providers.NewGroqProvider(deployment)
	}
	return nil, fmt.Errorf("unknown provider %q", deployment.Provider)
}

// BuildRouter creates a router from configuration. Deployments whose key is
// missing are skipped with a log line; requests routed to them fail with
// routing.ErrProviderNotConfigured.
func BuildRouter(ctx context.Context, config *Config, factory ProviderFactory) (*routing.Router, *models.ModelRegistry, *models.DeploymentRegistry, error) {
	if factory == nil {
		factory = DefaultFactory
	}

	fallback := models.ProviderGroq
	if p, ok := models.ParseProvider(config.Routing.Fallback); ok {
		fallback = p
	}

	modelRegistry := config.Catalogue()
	deploymentRegistry := models.NewDeploymentRegistry()
	router := routing.NewRouter(fallback, deploymentRegistry)

	for _, provider := range models.AllProviders {
		deploymentConfig, ok := config.Deployments[string(provider)]
		if !ok {
			continue
		}

		keyEnv := deploymentConfig.Endpoint.Auth.APIKeyEnv
		if keyEnv == "" {
			keyEnv = defaultKeyEnv[provider]
		}

		// the Gemini client has no endpoint override
		if provider == models.ProviderGoogle && deploymentConfig.Endpoint.BaseURL != "" {
			log.Printf("[Config] google ignores endpoint.base_url %q", deploymentConfig.Endpoint.BaseURL)
			deploymentConfig.Endpoint.BaseURL = ""
		}

		deployment := &models.Deployment{
			ID:       string(provider),
			Provider: provider,
			Endpoint: models.EndpointConfig{
				BaseURL: deploymentConfig.Endpoint.BaseURL,
				Timeout: parseDuration(deploymentConfig.Endpoint.Timeout, 30*time.Second),
				Auth: models.AuthConfig{
					APIKeyEnv: keyEnv,
					APIKey:    os.Getenv(keyEnv),
				},
				CustomHeaders: deploymentConfig.Endpoint.CustomHeaders,
			},
			Status: models.DeploymentStatus{Healthy: true},
		}

		client, err := factory(ctx, deployment)
		if errors.Is(err, providers.ErrMissingAPIKey) {
			log.Printf("[Config] %s not configured: %s is not set", provider, keyEnv)
			continue
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create %s provider: %w", provider, err)
		}

		deploymentRegistry.Register(deployment)
		router.RegisterProvider(provider, client)
	}

	// Set up health checker if enabled
	if config.Routing.HealthCheck.Enabled {
		interval := parseDuration(config.Routing.HealthCheck.Interval, 60*time.Second)
		timeout := parseDuration(config.Routing.HealthCheck.Timeout, 5*time.Second)

		healthChecker := routing.NewHealthChecker(router, interval, timeout)
		if config.Routing.HealthCheck.CheckOnStartup {
			healthChecker.Start()
		}
	}

	return router, modelRegistry, deploymentRegistry, nil
}
