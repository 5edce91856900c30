package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tmaxmax/go-sse"

	"chatrelay/models"
	"chatrelay/providers"
	"chatrelay/routing"
	"chatrelay/stream"
)

// ChatCompletionRequest is the OpenAI-compatible request body
type ChatCompletionRequest struct {
	Model               string              `json:"model"`
	Messages            []CompletionMessage `json:"messages"`
	Temperature         float64             `json:"temperature,omitempty"`
	MaxTokens           int                 `json:"max_tokens,omitempty"`
	MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty"`
	Stream              bool                `json:"stream,omitempty"`
}

// CompletionMessage holds content either as a string or as an array of
// typed parts
type CompletionMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text joins the text parts of the message content
func (m CompletionMessage) Text() string {
	content := gjson.ParseBytes(m.Content)
	if !content.IsArray() {
		return content.String()
	}
	var b strings.Builder
	content.ForEach(func(_, part gjson.Result) bool {
		if part.Get("type").String() == "text" {
			b.WriteString(part.Get("text").String())
		}
		return true
	})
	return b.String()
}

// ChatCompletionResponse is a chat.completion or chat.completion.chunk object
type ChatCompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *CompletionUsage   `json:"usage,omitempty"`
}

type CompletionChoice struct {
	Index        int               `json:"index"`
	Message      *AssistantMessage `json:"message,omitempty"`
	Delta        *CompletionDelta  `json:"delta,omitempty"`
	FinishReason *string           `json:"finish_reason"`
}

type AssistantMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type CompletionDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func completionError(c *gin.Context, status int, errType, msg string) {
	c.JSON(status, gin.H{"error": gin.H{"message": msg, "type": errType}})
}

// validate checks the sampling parameters and returns the effective token cap
func (req *ChatCompletionRequest) validate() (int, error) {
	if len(req.Messages) == 0 {
		return 0, errors.New("messages must not be empty")
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return 0, errors.New("temperature must be between 0 and 2")
	}
	maxTokens := req.MaxTokens
	if req.MaxCompletionTokens > 0 {
		maxTokens = req.MaxCompletionTokens
	}
	if maxTokens < 0 {
		return 0, errors.New("max_tokens must not be negative")
	}
	return maxTokens, nil
}

// handleChatCompletions handles POST /v1/chat/completions. The model picks
// the provider through the catalogue; web search is never attached.
func (s *server) handleChatCompletions(c *gin.Context) {
	var req ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[handleChatCompletions] Failed to decode JSON: %v", err)
		completionError(c, http.StatusBadRequest, "invalid_request_error", "Invalid JSON")
		return
	}
	maxTokens, err := req.validate()
	if err != nil {
		completionError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	if req.Model == "" {
		req.Model = models.DefaultModelID
	}
	if _, ok := s.catalogue.Get(req.Model); !ok {
		completionError(c, http.StatusNotFound, "invalid_request_error", fmt.Sprintf("The model %q does not exist", req.Model))
		return
	}

	requestID := generateRequestID()
	sel := routing.Selection{Provider: s.catalogue.ProviderOf(req.Model), ModelID: req.Model}
	decision, err := s.router.RouteSelection(requestID, sel)
	if err != nil {
		log.Printf("[handleChatCompletions] %s: %v", requestID, err)
		completionError(c, http.StatusServiceUnavailable, "server_error", err.Error())
		return
	}
	log.Printf("[handleChatCompletions] %s - Model: %s, MaxTokens: %d, Temperature: %f, Stream: %v",
		requestID, req.Model, maxTokens, req.Temperature, req.Stream)

	msgs := make([]providers.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if text := m.Text(); text != "" {
			msgs = append(msgs, providers.Message{Role: m.Role, Content: text})
		}
	}
	upstreamReq := newUnifiedRequest(decision, msgs, &RouterParams{
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.settings.ChatTimeout)
	defer cancel()

	c.Header(requestIDHeader, requestID)
	id := "chatcmpl-" + strings.TrimPrefix(requestID, "req_")
	if req.Stream {
		s.streamCompletion(ctx, c, decision, upstreamReq, id)
		return
	}

	response, err := LLMWithRouter(ctx, decision, upstreamReq, discardSink{})
	s.auditTurn(requestID, sel, upstreamReq.Messages, response, err)
	if err != nil {
		log.Printf("[handleChatCompletions] %s: %v", requestID, err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		completionError(c, status, "upstream_error", streamErrorText(err))
		return
	}

	stop := "stop"
	resp := ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []CompletionChoice{{
			Message: &AssistantMessage{
				Role:             "assistant",
				Content:          response.Content,
				ReasoningContent: response.Reasoning,
			},
			FinishReason: &stop,
		}},
	}
	if s.audit != nil {
		resp.Usage = &CompletionUsage{
			PromptTokens:     response.InputTokens,
			CompletionTokens: response.OutputTokens,
			TotalTokens:      response.InputTokens + response.OutputTokens,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) streamCompletion(ctx context.Context, c *gin.Context, decision *routing.RoutingDecision, req *providers.UnifiedRequest, id string) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	session, err := sse.Upgrade(c.Writer, c.Request)
	if err != nil {
		completionError(c, http.StatusInternalServerError, "server_error", "Streaming not supported")
		return
	}

	cs := &completionStream{session: session, id: id, model: req.Model, created: time.Now().Unix()}
	response, err := LLMWithRouter(ctx, decision, req, cs)
	s.auditTurn(decision.RequestID, decision.Selection, req.Messages, response, err)
	if err != nil {
		log.Printf("[handleChatCompletions] %s: %v", decision.RequestID, err)
		_ = cs.sendJSON(gin.H{"error": gin.H{"message": streamErrorText(err), "type": "upstream_error"}})
	} else {
		stop := "stop"
		_ = cs.send(CompletionChoice{Delta: &CompletionDelta{}, FinishReason: &stop})
	}
	_ = cs.sendData(stream.DoneMarker)
}

// completionStream writes chat.completion.chunk events. Sources and tool
// results have no place in the format and are dropped.
type completionStream struct {
	session *sse.Session
	id      string
	model   string
	created int64
	opened  bool
}

func (cs *completionStream) Text(delta string) error {
	return cs.delta(CompletionDelta{Content: delta})
}

func (cs *completionStream) Reasoning(delta string) error {
	return cs.delta(CompletionDelta{ReasoningContent: delta})
}

func (cs *completionStream) Source(string, string, string) error { return nil }

func (cs *completionStream) ToolResult(string, string, json.RawMessage) error { return nil }

func (cs *completionStream) delta(d CompletionDelta) error {
	if !cs.opened {
		cs.opened = true
		d.Role = "assistant"
	}
	return cs.send(CompletionChoice{Delta: &d})
}

func (cs *completionStream) send(choice CompletionChoice) error {
	return cs.sendJSON(ChatCompletionResponse{
		ID:      cs.id,
		Object:  "chat.completion.chunk",
		Created: cs.created,
		Model:   cs.model,
		Choices: []CompletionChoice{choice},
	})
}

func (cs *completionStream) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal completion chunk: %w", err)
	}
	return cs.sendData(string(data))
}

func (cs *completionStream) sendData(data string) error {
	m := &sse.Message{}
	m.AppendData(data)
	if err := cs.session.Send(m); err != nil {
		return err
	}
	return cs.session.Flush()
}

// discardSink drops relayed chunks; LLMWithRouter still collects the reply
type discardSink struct{}

func (discardSink) Text(string) error { return nil }

func (discardSink) Reasoning(string) error { return nil }

func (discardSink) Source(string, string, string) error { return nil }

func (discardSink) ToolResult(string, string, json.RawMessage) error { return nil }
