package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/models"
	"chatrelay/providers"
)

type nopProvider struct{ name models.ProviderType }

func (n *nopProvider) Stream(ctx context.Context, req *providers.UnifiedRequest, stream chan<- providers.StreamChunk) error {
	close(stream)
	return nil
}
func (n *nopProvider) ValidateConfig(*models.Deployment) error { return nil }
func (n *nopProvider) HealthCheck(context.Context, *models.Deployment) error { return nil }
func (n *nopProvider) GetInfo() providers.ProviderInfo {
	return providers.ProviderInfo{Name: string(n.name)}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestExpandEnvDefaults(t *testing.T) {
	t.Setenv("CHATRELAY_SET", "value")
	assert.Equal(t, "value/x", expandEnv("${CHATRELAY_SET}/x"))
	assert.Equal(t, "fallback", expandEnv("${CHATRELAY_UNSET:-fallback}"))
	assert.Equal(t, "value", expandEnv("${CHATRELAY_SET:-fallback}"))
	assert.Equal(t, "plain $HOME", expandEnv("plain $HOME"))
}

func TestLoadConfigMissingDirUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)

	catalogue := cfg.Catalogue()
	first, ok := catalogue.First()
	require.True(t, ok)
	assert.Equal(t, "gpt-5-mini", first.ID)
	_, ok = catalogue.Get(models.DefaultModelID)
	assert.True(t, ok)
	assert.Equal(t, "groq", cfg.Routing.Fallback)
	assert.Len(t, cfg.Deployments, 4)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHATRELAY_OPENAI_URL", "http://upstream.test/v1")
	writeFile(t, dir, "models.yaml", `
models:
  - id: gpt-4o-mini
    name: GPT-4o Mini
    provider: openai
    capabilities:
      supports_web_search: true
  - id: claude-3-haiku-20240307
    name: Claude 3 Haiku
    provider: anthropic
`)
	writeFile(t, dir, "providers.yaml", `
deployments:
  openai:
    endpoint:
      base_url: ${CHATRELAY_OPENAI_URL}
      timeout: 45s
      auth:
        api_key_env: CHATRELAY_OPENAI_KEY
  anthropic:
    endpoint:
      base_url: ${CHATRELAY_ANTHROPIC_URL:-https://api.anthropic.com/v1}
`)
	writeFile(t, dir, "routing.yaml", `
routing:
  fallback: openai
  health_check:
    enabled: true
    interval: 1h
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "http://upstream.test/v1", cfg.Deployments["openai"].Endpoint.BaseURL)
	assert.Equal(t, "https://api.anthropic.com/v1", cfg.Deployments["anthropic"].Endpoint.BaseURL)

	t.Setenv("CHATRELAY_OPENAI_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")

	var built []*models.Deployment
	factory := func(_ context.Context, d *models.Deployment) (providers.Provider, error) {
		if d.Endpoint.Auth.APIKey == "" {
			return nil, providers.ErrMissingAPIKey
		}
		built = append(built, d)
		return &nopProvider{name: d.Provider}, nil
	}

	router, catalogue, deployments, err := BuildRouter(context.Background(), cfg, factory)
	require.NoError(t, err)

	assert.Equal(t, models.ProviderAnthropic, catalogue.ProviderOf("claude-3-haiku-20240307"))
	assert.Equal(t, []models.ProviderType{models.ProviderOpenAI}, router.Configured())
	assert.Equal(t, models.ProviderOpenAI, router.Fallback())

	require.Len(t, built, 1)
	assert.Equal(t, "sk-test", built[0].Endpoint.Auth.APIKey)
	assert.Equal(t, "45s", built[0].Endpoint.Timeout.String())

	d, ok := deployments.Get(models.ProviderOpenAI)
	require.True(t, ok)
	assert.Equal(t, "http://upstream.test/v1", d.Endpoint.BaseURL)
	_, ok = deployments.Get(models.ProviderAnthropic)
	assert.False(t, ok)

	hc := router.HealthChecker()
	require.NotNil(t, hc)
	assert.False(t, hc.Running())
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.yaml", `
models:
  - id: mystery
    provider: OpenAI
`)
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestDefaultFactoryRequiresKeys(t *testing.T) {
	for _, p := range models.AllProviders {
		_, err := DefaultFactory(context.Background(), &models.Deployment{Provider: p})
		assert.ErrorIs(t, err, providers.ErrMissingAPIKey, string(p))
	}
}

func TestBuildRouterDropsGoogleBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "providers.yaml", `
deployments:
  google:
    endpoint:
      base_url: https://gemini.proxy.test/v1beta
      timeout: 20s
      auth:
        api_key_env: CHATRELAY_GOOGLE_KEY
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	t.Setenv("CHATRELAY_GOOGLE_KEY", "g-test")

	var built *models.Deployment
	factory := func(_ context.Context, d *models.Deployment) (providers.Provider, error) {
		built = d
		return &nopProvider{name: d.Provider}, nil
	}
	_, _, deployments, err := BuildRouter(context.Background(), cfg, factory)
	require.NoError(t, err)

	require.NotNil(t, built)
	assert.Empty(t, built.Endpoint.BaseURL)
	assert.Equal(t, "20s", built.Endpoint.Timeout.String())
	d, ok := deployments.Get(models.ProviderGoogle)
	require.True(t, ok)
	assert.Empty(t, d.Endpoint.BaseURL)
}
