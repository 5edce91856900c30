package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatrelay/models"
)

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrEmptyRequest  = errors.New("request has no messages")
)

// Provider interface for all upstream model clients
type Provider interface {
	// Stream runs one completion and pushes chunks until the upstream
	// finishes. Implementations close stream before returning.
	Stream(ctx context.Context, req *UnifiedRequest, stream chan<- StreamChunk) error

	// Validate deployment configuration
	ValidateConfig(deployment *models.Deployment) error

	// Health check
	HealthCheck(ctx context.Context, deployment *models.Deployment) error

	// Get provider info
	GetInfo() ProviderInfo
}

// UnifiedRequest is the provider-neutral request built by the relay
type UnifiedRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	User        string    `json:"user,omitempty"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Files   []File `json:"files,omitempty"`
}

// File is an attachment decoded from a data URL
type File struct {
	MediaType string `json:"media_type"`
	Filename  string `json:"filename,omitempty"`
	Data      []byte `json:"-"`
}

// Tool is a hosted tool attached to the request
type Tool struct {
	Type              string `json:"type"`
	SearchContextSize string `json:"search_context_size,omitempty"`
}

// WebSearchTool returns the hosted search tool with the widest context
func WebSearchTool() Tool {
	return Tool{Type: "web_search_preview", SearchContextSize: "high"}
}

// ChunkType tags a StreamChunk
type ChunkType string

const (
	ChunkText       ChunkType = "text"
	ChunkReasoning  ChunkType = "reasoning"
	ChunkSource     ChunkType = "source"
	ChunkToolResult ChunkType = "tool-result"
)

// StreamChunk represents a streaming response chunk
type StreamChunk struct {
	Type ChunkType

	// text and reasoning deltas
	Data string

	// source
	SourceID string
	URL      string
	Title    string

	// tool-result
	ToolCallID string
	ToolName   string
	Result     json.RawMessage

	Error error
	Done  bool
}

// ProviderInfo contains provider metadata
type ProviderInfo struct {
	Name              string
	Version           string
	SupportsStream    bool
	SupportsWebSearch bool
	SupportsReasoning bool
	RequiresAuth      bool
}

// UpstreamError is a non-2xx answer from a provider API
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// send delivers a chunk unless the consumer has gone away
func send(ctx context.Context, stream chan<- StreamChunk, chunk StreamChunk) error {
	select {
	case stream <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail reports err on the stream and returns it
func fail(ctx context.Context, stream chan<- StreamChunk, err error) error {
	_ = send(ctx, stream, StreamChunk{Error: err})
	return err
}
