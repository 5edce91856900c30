package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"chatrelay/providers"
	"chatrelay/routing"
)

// chunkSink receives the relayed parts of one turn. *stream.Writer is the
// UI message stream sink; the completions endpoint has its own.
type chunkSink interface {
	Text(delta string) error
	Reasoning(delta string) error
	Source(sourceID, url, title string) error
	ToolResult(toolCallID, toolName string, result json.RawMessage) error
}

// RouterParams carries optional sampling parameters from the caller
type RouterParams struct {
	Temperature float64
	MaxTokens   int
}

// newUnifiedRequest builds the provider request for a routed turn
func newUnifiedRequest(decision *routing.RoutingDecision, msgs []providers.Message, params *RouterParams) *providers.UnifiedRequest {
	req := &providers.UnifiedRequest{
		Model:    decision.Selection.ModelID,
		Messages: msgs,
		Tools:    decision.Tools,
		User:     decision.RequestID,
	}
	if params != nil {
		req.Temperature = params.Temperature
		req.MaxTokens = params.MaxTokens
	}
	return req
}

// LLMWithRouter runs one turn through the routed provider and relays every
// chunk to sink. It returns the collected reply; err is the first upstream or
// client write failure.
func LLMWithRouter(ctx context.Context, decision *routing.RoutingDecision, req *providers.UnifiedRequest, sink chunkSink) (*LLMResponse, error) {
	sel := decision.Selection
	log.Printf("[LLMWithRouter] %s -> %s/%s (tools: %d, coerced: %v)",
		decision.RequestID, sel.Provider, sel.ModelID, len(req.Tools), sel.Coerced)

	fullInput := flattenInput(req.Messages)
	response := &LLMResponse{
		Input:     fullInput,
		InputHash: generateSignature(fullInput),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan providers.StreamChunk)
	errc := make(chan error, 1)
	go func() {
		errc <- decision.Client.Stream(ctx, req, chunks)
	}()

	var content, reasoning strings.Builder
	var relayErr error
	for chunk := range chunks {
		if relayErr != nil {
			continue
		}
		if chunk.Error != nil {
			relayErr = chunk.Error
			cancel()
			continue
		}
		if chunk.Done {
			continue
		}

		var err error
		switch chunk.Type {
		case providers.ChunkText:
			content.WriteString(chunk.Data)
			err = sink.Text(chunk.Data)
		case providers.ChunkReasoning:
			reasoning.WriteString(chunk.Data)
			err = sink.Reasoning(chunk.Data)
		case providers.ChunkSource:
			response.Sources++
			err = sink.Source(chunk.SourceID, chunk.URL, chunk.Title)
		case providers.ChunkToolResult:
			err = sink.ToolResult(chunk.ToolCallID, chunk.ToolName, chunk.Result)
		}
		if err != nil {
			relayErr = fmt.Errorf("failed to write to client: %w", err)
			cancel()
		}
	}

	streamErr := <-errc
	if relayErr == nil && streamErr != nil {
		relayErr = streamErr
	}

	response.Content = content.String()
	response.Reasoning = reasoning.String()
	response.OutputHash = generateSignature(response.Content)
	return response, relayErr
}

// streamErrorText is the errorText sent to the browser for a failed turn
func streamErrorText(err error) string {
	var upstream *providers.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return upstream.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.Is(err, routing.ErrProviderNotConfigured):
		return err.Error()
	}
	return "An error occurred while generating the response"
}
