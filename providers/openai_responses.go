package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tmaxmax/go-sse"
	"resty.dev/v3"

	"chatrelay/message"
	"chatrelay/models"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	// upstream events can carry whole web search results
	maxUpstreamEventSize = 1 << 20
)

// OpenAIResponsesProvider streams completions from the OpenAI Responses API.
// It is the only provider that accepts the hosted web search tool.
type OpenAIResponsesProvider struct {
	client     *resty.Client
	deployment *models.Deployment
}

// NewOpenAIResponsesProvider creates a provider bound to a deployment
func NewOpenAIResponsesProvider(deployment *models.Deployment) *OpenAIResponsesProvider {
	baseURL := deployment.Endpoint.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(deployment.Endpoint.Auth.APIKey).
		SetHeader("Content-Type", "application/json")
	for k, v := range deployment.Endpoint.CustomHeaders {
		client.SetHeader(k, v)
	}
	if deployment.Endpoint.Timeout > 0 {
		client.SetTimeout(deployment.Endpoint.Timeout)
	}

	return &OpenAIResponsesProvider{
		client:     client,
		deployment: deployment,
	}
}

// responsesRequest is the body of POST /responses
type responsesRequest struct {
	Model           string           `json:"model"`
	Input           []responsesInput `json:"input"`
	Stream          bool             `json:"stream"`
	Tools           []Tool           `json:"tools,omitempty"`
	Include         []string         `json:"include,omitempty"`
	Reasoning       *reasoningConfig `json:"reasoning,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
	MaxOutputTokens int              `json:"max_output_tokens,omitempty"`
	User            string           `json:"user,omitempty"`
}

type responsesInput struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

type reasoningConfig struct {
	Summary string `json:"summary"`
}

// isReasoningModel reports whether the model accepts a reasoning summary request
func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

// translateRequest converts the unified request to the Responses format
func (p *OpenAIResponsesProvider) translateRequest(req *UnifiedRequest) *responsesRequest {
	body := &responsesRequest{
		Model:           req.Model,
		Stream:          true,
		Tools:           req.Tools,
		MaxOutputTokens: req.MaxTokens,
		User:            req.User,
	}

	for _, msg := range req.Messages {
		textType := "input_text"
		if msg.Role == "assistant" {
			textType = "output_text"
		}

		item := responsesInput{Role: msg.Role}
		if msg.Content != "" {
			item.Content = append(item.Content, responsesContent{Type: textType, Text: msg.Content})
		}
		for _, f := range msg.Files {
			dataURL := message.DataURL(f.MediaType, f.Data)
			if strings.HasPrefix(f.MediaType, "image/") {
				item.Content = append(item.Content, responsesContent{Type: "input_image", ImageURL: dataURL})
			} else {
				item.Content = append(item.Content, responsesContent{Type: "input_file", Filename: f.Filename, FileData: dataURL})
			}
		}
		if len(item.Content) > 0 {
			body.Input = append(body.Input, item)
		}
	}

	for _, tool := range req.Tools {
		if tool.Type == "web_search_preview" {
			body.Include = []string{"web_search_call.action.sources"}
		}
	}

	if isReasoningModel(req.Model) {
		body.Reasoning = &reasoningConfig{Summary: "auto"}
	} else if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}

	return body
}

// Stream handles streaming responses
func (p *OpenAIResponsesProvider) Stream(ctx context.Context, req *UnifiedRequest, stream chan<- StreamChunk) error {
	defer close(stream)

	if len(req.Messages) == 0 {
		return fail(ctx, stream, ErrEmptyRequest)
	}

	res, err := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBody(p.translateRequest(req)).
		SetDoNotParseResponse(true).
		Post("/responses")
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return fail(ctx, stream, fmt.Errorf("failed to call responses API: %w", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
		return fail(ctx, stream, &UpstreamError{
			Provider:   "openai",
			StatusCode: res.StatusCode(),
			Message:    upstreamMessage(raw, res.Status()),
		})
	}

	for ev, err := range sse.Read(res.Body, &sse.ReadConfig{MaxEventSize: maxUpstreamEventSize}) {
		if err != nil {
			return fail(ctx, stream, fmt.Errorf("failed to read responses stream: %w", err))
		}
		if ev.Data == "" || ev.Data == "[DONE]" {
			continue
		}

		done, err := p.handleEvent(ctx, ev.Data, stream)
		if err != nil {
			return fail(ctx, stream, err)
		}
		if done {
			return send(ctx, stream, StreamChunk{Done: true})
		}
	}

	// Upstream closed without response.completed
	return send(ctx, stream, StreamChunk{Done: true})
}

// handleEvent maps one Responses API event to stream chunks
func (p *OpenAIResponsesProvider) handleEvent(ctx context.Context, data string, stream chan<- StreamChunk) (bool, error) {
	event := gjson.Parse(data)

	switch event.Get("type").String() {
	case "response.output_text.delta":
		return false, send(ctx, stream, StreamChunk{Type: ChunkText, Data: event.Get("delta").String()})

	case "response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		return false, send(ctx, stream, StreamChunk{Type: ChunkReasoning, Data: event.Get("delta").String()})

	case "response.output_text.annotation.added":
		annotation := event.Get("annotation")
		if annotation.Get("type").String() != "url_citation" {
			return false, nil
		}
		return false, send(ctx, stream, StreamChunk{
			Type:     ChunkSource,
			SourceID: uuid.NewString(),
			URL:      annotation.Get("url").String(),
			Title:    annotation.Get("title").String(),
		})

	case "response.output_item.done":
		item := event.Get("item")
		if item.Get("type").String() != "web_search_call" {
			return false, nil
		}
		result, err := webSearchResult(item)
		if err != nil {
			return false, err
		}
		return false, send(ctx, stream, StreamChunk{
			Type:       ChunkToolResult,
			ToolCallID: item.Get("id").String(),
			ToolName:   "web_search_preview",
			Result:     result,
		})

	case "response.completed", "response.incomplete":
		return true, nil

	case "response.failed":
		msg := event.Get("response.error.message").String()
		if msg == "" {
			msg = "response failed"
		}
		return false, &UpstreamError{Provider: "openai", StatusCode: http.StatusOK, Message: msg}

	case "error":
		msg := event.Get("message").String()
		if msg == "" {
			msg = event.Get("error.message").String()
		}
		return false, &UpstreamError{Provider: "openai", StatusCode: http.StatusOK, Message: msg}
	}

	return false, nil
}

type searchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// webSearchResult builds {query, results[]} from a completed web_search_call item
func webSearchResult(item gjson.Result) (json.RawMessage, error) {
	hits := []searchHit{}
	item.Get("action.sources").ForEach(func(_, src gjson.Result) bool {
		url := src.Get("url").String()
		if url == "" {
			return true
		}
		title := src.Get("title").String()
		if title == "" {
			title = url
		}
		hits = append(hits, searchHit{Title: title, URL: url})
		return true
	})

	out, err := json.Marshal(struct {
		Query   string      `json:"query,omitempty"`
		Results []searchHit `json:"results"`
	}{
		Query:   item.Get("action.query").String(),
		Results: hits,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode web search result: %w", err)
	}
	return out, nil
}

// upstreamMessage extracts error.message from an API error body
func upstreamMessage(raw []byte, fallback string) string {
	if msg := gjson.GetBytes(raw, "error.message").String(); msg != "" {
		return msg
	}
	if msg := gjson.GetBytes(raw, "message").String(); msg != "" {
		return msg
	}
	return fallback
}

// ValidateConfig validates deployment configuration
func (p *OpenAIResponsesProvider) ValidateConfig(deployment *models.Deployment) error {
	if deployment.Endpoint.Auth.APIKey == "" {
		return fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	return nil
}

// HealthCheck lists models, which needs a valid key but no tokens
func (p *OpenAIResponsesProvider) HealthCheck(ctx context.Context, deployment *models.Deployment) error {
	return probe(ctx, p.client, "openai", "/models")
}

// GetInfo returns provider information
func (p *OpenAIResponsesProvider) GetInfo() ProviderInfo {
	return ProviderInfo{
		Name:              "OpenAI Responses",
		Version:           "v1",
		SupportsStream:    true,
		SupportsWebSearch: true,
		SupportsReasoning: true,
		RequiresAuth:      true,
	}
}

// probe issues a GET and treats any non-2xx answer as unhealthy
func probe(ctx context.Context, client *resty.Client, provider, path string) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := client.R().SetContext(healthCtx).Get(path)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	if res.IsError() {
		log.Printf("[HealthCheck] %s returned %d", provider, res.StatusCode())
		return &UpstreamError{Provider: provider, StatusCode: res.StatusCode(), Message: upstreamMessage(res.Bytes(), res.Status())}
	}
	return nil
}
