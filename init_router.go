package main

import (
	"context"
	"fmt"
	"log"

	"chatrelay/config"
	"chatrelay/models"
	"chatrelay/routing"
)

// InitializeModelRouter loads the catalogue and provider endpoints and
// builds one client per provider whose key is present
func InitializeModelRouter(ctx context.Context, settings Settings) (*routing.Router, *models.ModelRegistry, *models.DeploymentRegistry, error) {
	log.Println("[InitializeModelRouter] Starting model router initialization...")

	cfg, err := config.LoadConfig(settings.ConfigDir)
	if err != nil {
		return nil, nil, nil, err
	}

	// OPENAI_BASE_URL wins over providers.yaml so tests and proxies can redirect it
	if settings.OpenAIBaseURL != "" {
		openai := cfg.Deployments[string(models.ProviderOpenAI)]
		openai.Endpoint.BaseURL = settings.OpenAIBaseURL
		cfg.Deployments[string(models.ProviderOpenAI)] = openai
	}

	router, catalogue, deployments, err := config.BuildRouter(ctx, cfg, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build router: %w", err)
	}

	if err := validateProviders(router); err != nil {
		return nil, nil, nil, err
	}

	configured := router.Configured()
	if len(configured) == 0 {
		log.Println("[InitializeModelRouter] WARNING: no provider API keys set, every chat request will fail")
	} else {
		log.Printf("[InitializeModelRouter] Providers configured: %v (fallback: %s)", configured, router.Fallback())
	}
	log.Printf("[InitializeModelRouter] %d models in catalogue", len(catalogue.List()))

	return router, catalogue, deployments, nil
}

// validateProviders checks each registered client against its deployment
func validateProviders(router *routing.Router) error {
	for _, provider := range router.Configured() {
		client, _ := router.Provider(provider)
		deployment, ok := router.Deployments().Get(provider)
		if !ok {
			return fmt.Errorf("provider %s has no deployment", provider)
		}
		if err := client.ValidateConfig(deployment); err != nil {
			return fmt.Errorf("provider %s: %w", provider, err)
		}
	}
	return nil
}
