package providers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"resty.dev/v3"

	"chatrelay/models"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultGoogleBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultGroqBaseURL      = "https://api.groq.com/openai/v1"

	defaultMaxTokens = 4096
)

// LangChainProvider adapts any langchaingo model to the Provider interface.
// Anthropic, Google and Groq are served through it.
type LangChainProvider struct {
	name    models.ProviderType
	llm     llms.Model
	probe   *resty.Client
	path    string
	timeout time.Duration
}

// NewLangChainProvider wraps llm. probe and path are used by HealthCheck; a
// nil probe makes the health check a no-op.
func NewLangChainProvider(name models.ProviderType, llm llms.Model, probe *resty.Client, path string) *LangChainProvider {
	return &LangChainProvider{name: name, llm: llm, probe: probe, path: path}
}

// WithTimeout bounds each Stream call; zero leaves only the caller's deadline
func (l *LangChainProvider) WithTimeout(d time.Duration) *LangChainProvider {
	l.timeout = d
	return l
}

// NewAnthropicProvider creates the Anthropic messages client
func NewAnthropicProvider(deployment *models.Deployment) (*LangChainProvider, error) {
	key := deployment.Endpoint.Auth.APIKey
	if key == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	baseURL := baseURLOr(deployment, defaultAnthropicBaseURL)

	llm, err := anthropic.New(
		anthropic.WithToken(key),
		anthropic.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}

	probe := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-api-key", key).
		SetHeader("anthropic-version", "2023-06-01")
	return NewLangChainProvider(models.ProviderAnthropic, llm, probe, "/models").
		WithTimeout(deployment.Endpoint.Timeout), nil
}

// NewGoogleProvider creates the Gemini client
func NewGoogleProvider(ctx context.Context, deployment *models.Deployment) (*LangChainProvider, error) {
	key := deployment.Endpoint.Auth.APIKey
	if key == "" {
		return nil, fmt.Errorf("google: %w", ErrMissingAPIKey)
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(key),
		googleai.WithDefaultMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	probe := resty.New().
		SetBaseURL(defaultGoogleBaseURL).
		SetQueryParam("key", key)
	return NewLangChainProvider(models.ProviderGoogle, llm, probe, "/models").
		WithTimeout(deployment.Endpoint.Timeout), nil
}

// NewGroqProvider creates a Groq client over its OpenAI-compatible API
func NewGroqProvider(deployment *models.Deployment) (*LangChainProvider, error) {
	key := deployment.Endpoint.Auth.APIKey
	if key == "" {
		return nil, fmt.Errorf("groq: %w", ErrMissingAPIKey)
	}
	baseURL := baseURLOr(deployment, defaultGroqBaseURL)

	llm, err := openai.New(
		openai.WithToken(key),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groq client: %w", err)
	}

	probe := resty.New().SetBaseURL(baseURL).SetAuthToken(key)
	return NewLangChainProvider(models.ProviderGroq, llm, probe, "/models").
		WithTimeout(deployment.Endpoint.Timeout), nil
}

func baseURLOr(deployment *models.Deployment, fallback string) string {
	if deployment.Endpoint.BaseURL != "" {
		return strings.TrimRight(deployment.Endpoint.BaseURL, "/")
	}
	return fallback
}

// toMessageContent converts unified messages to langchaingo content
func toMessageContent(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, msg := range msgs {
		var role llms.ChatMessageType
		switch msg.Role {
		case "assistant":
			role = llms.ChatMessageTypeAI
		case "system":
			role = llms.ChatMessageTypeSystem
		default:
			role = llms.ChatMessageTypeHuman
		}

		var parts []llms.ContentPart
		if msg.Content != "" {
			parts = append(parts, llms.TextPart(msg.Content))
		}
		for _, f := range msg.Files {
			parts = append(parts, llms.BinaryPart(f.MediaType, f.Data))
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, llms.MessageContent{Role: role, Parts: parts})
	}
	return out
}

// Stream handles streaming responses
func (l *LangChainProvider) Stream(ctx context.Context, req *UnifiedRequest, stream chan<- StreamChunk) error {
	defer close(stream)

	content := toMessageContent(req.Messages)
	if len(content) == 0 {
		return fail(ctx, stream, ErrEmptyRequest)
	}
	if len(req.Tools) > 0 {
		log.Printf("[LangChain] %s ignores %d hosted tool(s)", l.name, len(req.Tools))
	}
	callCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	var streamedText, streamedReasoning atomic.Bool
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []llms.CallOption{
		llms.WithModel(req.Model),
		llms.WithMaxTokens(maxTokens),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamedText.Store(true)
			return send(ctx, stream, StreamChunk{Type: ChunkText, Data: string(chunk)})
		}),
		llms.WithStreamingReasoningFunc(func(ctx context.Context, reasoningChunk, _ []byte) error {
			if len(reasoningChunk) == 0 {
				return nil
			}
			streamedReasoning.Store(true)
			return send(ctx, stream, StreamChunk{Type: ChunkReasoning, Data: string(reasoningChunk)})
		}),
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}

	resp, err := l.llm.GenerateContent(callCtx, content, opts...)
	if err != nil {
		return fail(ctx, stream, fmt.Errorf("%s: failed to generate content: %w", l.name, err))
	}

	// Some clients only return the final content
	if resp != nil && len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if !streamedReasoning.Load() && choice.ReasoningContent != "" {
			if err := send(ctx, stream, StreamChunk{Type: ChunkReasoning, Data: choice.ReasoningContent}); err != nil {
				return err
			}
		}
		if !streamedText.Load() && choice.Content != "" {
			if err := send(ctx, stream, StreamChunk{Type: ChunkText, Data: choice.Content}); err != nil {
				return err
			}
		}
	}

	return send(ctx, stream, StreamChunk{Done: true})
}

// ValidateConfig validates deployment configuration
func (l *LangChainProvider) ValidateConfig(deployment *models.Deployment) error {
	if deployment.Provider != l.name {
		return fmt.Errorf("deployment %s is for %s, not %s", deployment.ID, deployment.Provider, l.name)
	}
	if deployment.Endpoint.Auth.APIKey == "" {
		return fmt.Errorf("%s: %w", l.name, ErrMissingAPIKey)
	}
	return nil
}

// HealthCheck lists the upstream's models
func (l *LangChainProvider) HealthCheck(ctx context.Context, deployment *models.Deployment) error {
	if l.probe == nil {
		return nil
	}
	return probe(ctx, l.probe, string(l.name), l.path)
}

// GetInfo returns provider information
func (l *LangChainProvider) GetInfo() ProviderInfo {
	return ProviderInfo{
		Name:              "langchaingo/" + string(l.name),
		Version:           "v0.1",
		SupportsStream:    true,
		SupportsReasoning: l.name == models.ProviderAnthropic,
		RequiresAuth:      true,
	}
}
