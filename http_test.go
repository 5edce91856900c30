package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/message"
	"chatrelay/models"
	"chatrelay/providers"
	"chatrelay/routing"
	"chatrelay/stream"
)

type recordingProvider struct {
	name   models.ProviderType
	chunks []providers.StreamChunk
	err    error

	mu       sync.Mutex
	requests []*providers.UnifiedRequest
}

func (p *recordingProvider) Stream(ctx context.Context, req *providers.UnifiedRequest, out chan<- providers.StreamChunk) error {
	defer close(out)
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	for _, c := range p.chunks {
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.err != nil {
		out <- providers.StreamChunk{Error: p.err}
		return p.err
	}
	out <- providers.StreamChunk{Done: true}
	return nil
}

func (p *recordingProvider) ValidateConfig(*models.Deployment) error { return nil }

func (p *recordingProvider) HealthCheck(context.Context, *models.Deployment) error { return nil }

func (p *recordingProvider) GetInfo() providers.ProviderInfo {
	return providers.ProviderInfo{Name: "recording-" + string(p.name)}
}

func (p *recordingProvider) calls() []*providers.UnifiedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*providers.UnifiedRequest(nil), p.requests...)
}

func textChunks(parts ...string) []providers.StreamChunk {
	var out []providers.StreamChunk
	for _, p := range parts {
		out = append(out, providers.StreamChunk{Type: providers.ChunkText, Data: p})
	}
	return out
}

func testSettings() Settings {
	return Settings{
		HTTPPort:          8080,
		ChatTimeout:       5 * time.Second,
		TranscribeTimeout: 5 * time.Second,
		TranscribeURL:     "http://127.0.0.1:0/unused",
	}
}

// newTestServer registers one recording provider per name
func newTestServer(t *testing.T, settings Settings, clients ...*recordingProvider) *server {
	t.Helper()
	deployments := models.NewDeploymentRegistry()
	router := routing.NewRouter(models.ProviderGroq, deployments)
	for _, c := range clients {
		deployments.Register(&models.Deployment{ID: string(c.name), Provider: c.name, Status: models.DeploymentStatus{Healthy: true}})
		router.RegisterProvider(c.name, c)
	}
	catalogue := models.NewModelRegistry()
	for _, m := range models.DefaultCatalogue() {
		catalogue.Register(m)
	}
	return newServer(settings, router, catalogue, deployments, nil)
}

func chatBody(t *testing.T, msgs ...message.Message) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"messages": msgs})
	require.NoError(t, err)
	return string(raw)
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, []stream.Chunk) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var chunks []stream.Chunk
	for c, err := range stream.Read(bytes.NewReader(rec.Body.Bytes())) {
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
	return rec, chunks
}

func chunkText(chunks []stream.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		if c.Type == stream.ChunkTextDelta {
			b.WriteString(c.Delta)
		}
	}
	return b.String()
}

func TestChatAnthropicNeverGetsTools(t *testing.T) {
	anthropic := &recordingProvider{name: models.ProviderAnthropic, chunks: textChunks("Hel", "lo")}
	h := newTestServer(t, testSettings(), anthropic).handler()

	msg := message.NewUserText("hi", &message.Metadata{ModelID: "claude-3-haiku-20240307", Provider: "anthropic", UseWebSearch: true})
	rec, chunks := postChat(t, h, chatBody(t, msg))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "v1", rec.Header().Get(stream.HeaderName))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Contains(t, rec.Body.String(), "data: [DONE]")

	assert.Equal(t, "Hello", chunkText(chunks))
	assert.Equal(t, stream.ChunkStart, chunks[0].Type)
	assert.Equal(t, stream.ChunkFinish, chunks[len(chunks)-1].Type)

	calls := anthropic.calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Tools)
	assert.Equal(t, "claude-3-haiku-20240307", calls[0].Model)
}

func TestChatOpenAIWithSearchGetsOneTool(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI, chunks: []providers.StreamChunk{
		{Type: providers.ChunkReasoning, Data: "thinking"},
		{Type: providers.ChunkText, Data: "answer"},
		{Type: providers.ChunkSource, SourceID: "s1", URL: "https://example.com", Title: "Example"},
		{Type: providers.ChunkToolResult, ToolCallID: "ws_1", ToolName: message.WebSearchTool, Result: json.RawMessage(`{"results":[]}`)},
	}}
	h := newTestServer(t, testSettings(), openai).handler()

	msg := message.NewUserText("news?", &message.Metadata{ModelID: "gpt-5-mini", Provider: "openai", UseWebSearch: true})
	_, chunks := postChat(t, h, chatBody(t, msg))

	calls := openai.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, providers.Tool{Type: "web_search_preview", SearchContextSize: "high"}, calls[0].Tools[0])

	var kinds []stream.ChunkType
	for _, c := range chunks {
		kinds = append(kinds, c.Type)
	}
	assert.Equal(t, []stream.ChunkType{
		stream.ChunkStart, stream.ChunkStartStep,
		stream.ChunkReasoningStart, stream.ChunkReasoningDelta, stream.ChunkReasoningEnd,
		stream.ChunkTextStart, stream.ChunkTextDelta,
		stream.ChunkSourceURL, stream.ChunkToolResult,
		stream.ChunkTextEnd, stream.ChunkFinishStep, stream.ChunkFinish,
	}, kinds)
}

func TestChatOpenAIWithoutSearchGetsNoTools(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI, chunks: textChunks("ok")}
	h := newTestServer(t, testSettings(), openai).handler()

	msg := message.NewUserText("hi", &message.Metadata{ModelID: "gpt-5", Provider: "openai"})
	postChat(t, h, chatBody(t, msg))

	calls := openai.calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Tools)
}

func TestChatDefaultsAreStable(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI, chunks: textChunks("ok")}
	h := newTestServer(t, testSettings(), openai).handler()

	noMeta := message.Message{ID: "m1", Role: message.RoleUser, Parts: []message.Part{{Type: message.PartText, Text: "hi"}}}
	postChat(t, h, chatBody(t, noMeta))
	postChat(t, h, chatBody(t, noMeta))

	calls := openai.calls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, models.DefaultModelID, c.Model)
		assert.Empty(t, c.Tools)
	}
}

func TestChatUnknownProviderFallsBackToGroq(t *testing.T) {
	groq := &recordingProvider{name: models.ProviderGroq, chunks: textChunks("ok")}
	h := newTestServer(t, testSettings(), groq).handler()

	msg := message.NewUserText("hi", &message.Metadata{ModelID: "mixtral-8x7b-32768", Provider: "mistral", UseWebSearch: true})
	_, chunks := postChat(t, h, chatBody(t, msg))

	assert.Equal(t, "ok", chunkText(chunks))
	calls := groq.calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Tools)
}

func TestChatTranslatesHistory(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI, chunks: textChunks("ok")}
	h := newTestServer(t, testSettings(), openai).handler()

	history := []message.Message{
		message.NewUserText("first", nil),
		{ID: "a1", Role: message.RoleAssistant, Parts: []message.Part{
			{Type: message.PartReasoning, Text: "hidden"},
			{Type: message.PartText, Text: "reply"},
			{Type: message.PartSourceURL, URL: "https://a"},
		}},
		message.NewUserFile("cat.png", "image/png", []byte("png"), &message.Metadata{Provider: "openai"}),
	}
	postChat(t, h, chatBody(t, history...))

	calls := openai.calls()
	require.Len(t, calls, 1)
	msgs := calls[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, providers.Message{Role: "user", Content: "first"}, msgs[0])
	assert.Equal(t, providers.Message{Role: "assistant", Content: "reply"}, msgs[1])
	require.Len(t, msgs[2].Files, 1)
	assert.Equal(t, "image/png", msgs[2].Files[0].MediaType)
	assert.Equal(t, []byte("png"), msgs[2].Files[0].Data)
}

func TestChatUpstreamErrorBecomesErrorChunk(t *testing.T) {
	openai := &recordingProvider{
		name:   models.ProviderOpenAI,
		chunks: textChunks("partial"),
		err:    &providers.UpstreamError{Provider: "openai", StatusCode: 500, Message: "upstream exploded"},
	}
	h := newTestServer(t, testSettings(), openai).handler()

	rec, chunks := postChat(t, h, chatBody(t, message.NewUserText("hi", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	last := chunks[len(chunks)-1]
	assert.Equal(t, stream.ChunkError, last.Type)
	assert.Equal(t, "upstream exploded", last.ErrorText)
	assert.Equal(t, "partial", chunkText(chunks))
	for _, c := range chunks {
		assert.NotEqual(t, stream.ChunkFinish, c.Type)
	}
	assert.True(t, strings.HasSuffix(strings.TrimSpace(rec.Body.String()), "data: [DONE]"))
}

func TestChatUnconfiguredProvider(t *testing.T) {
	h := newTestServer(t, testSettings()).handler()

	msg := message.NewUserText("hi", &message.Metadata{Provider: "google"})
	_, chunks := postChat(t, h, chatBody(t, msg))

	last := chunks[len(chunks)-1]
	assert.Equal(t, stream.ChunkError, last.Type)
	assert.Contains(t, last.ErrorText, "google")
}

func TestChatMalformedJSON(t *testing.T) {
	h := newTestServer(t, testSettings()).handler()

	rec, _ := postChat(t, h, `{"messages": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
}

func TestChatRateLimited(t *testing.T) {
	settings := testSettings()
	settings.RateLimitRPS = 0.001
	settings.RateLimitBurst = 1
	openai := &recordingProvider{name: models.ProviderOpenAI, chunks: textChunks("ok")}
	h := newTestServer(t, settings, openai).handler()

	rec, _ := postChat(t, h, chatBody(t, message.NewUserText("one", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = postChat(t, h, chatBody(t, message.NewUserText("two", nil)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, rec.Body.String())

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code, "limit applies to /api only")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, testSettings()).handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCatalogueAndHealth(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI}
	h := newTestServer(t, testSettings(), openai).handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Models []models.Model `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.NotEmpty(t, list.Models)
	assert.Equal(t, "gpt-5-mini", list.Models[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models/claude-3-haiku-20240307", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var model ModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, "anthropic", model.OwnedBy)
	assert.False(t, model.Available)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["llm_configured"])
	assert.Equal(t, []any{"openai"}, health["providers"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routing_table", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fallback":"groq"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/transcribe")
}

func multipartAudio(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, "recording.webm")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("other", "x"))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestTranscribe(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		f, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		switch string(data) {
		case "ok":
			assert.Equal(t, "recording.webm", header.Filename)
			_, _ = io.WriteString(w, `{"text":"hello world"}`)
		case "denied":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided"}}`)
		case "opaque":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `<html>bad gateway</html>`)
		default:
			_, _ = io.WriteString(w, `not json`)
		}
	}))
	defer upstream.Close()

	settings := testSettings()
	settings.TranscribeURL = upstream.URL
	settings.OpenAIKey = "sk-test"
	h := newTestServer(t, settings).handler()

	for _, tc := range []struct {
		name   string
		field  string
		audio  string
		status int
		body   string
	}{
		{"missing audio", "", "", http.StatusBadRequest, `{"error":"No audio file provided"}`},
		{"success", "audio", "ok", http.StatusOK, `{"text":"hello world"}`},
		{"upstream message", "audio", "denied", http.StatusInternalServerError, `{"error":"Incorrect API key provided"}`},
		{"upstream without message", "audio", "opaque", http.StatusInternalServerError, `{"error":"Transcription failed"}`},
		{"undecodable body", "audio", "garbage", http.StatusInternalServerError, `{"error":"Transcription failed"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartAudio(t, tc.field, []byte(tc.audio))
			req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestTranscribeTransportError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	settings := testSettings()
	settings.TranscribeURL = url
	h := newTestServer(t, settings).handler()

	body, contentType := multipartAudio(t, "audio", []byte("ok"))
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Transcription failed"}`, rec.Body.String())
}

func TestTermsOfService(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI}
	h := newTestServer(t, testSettings(), openai).handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terms_of_service", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OpenAI Terms of Use")
	assert.NotContains(t, rec.Body.String(), "Anthropic Terms of Service")
	assert.Contains(t, rec.Body.String(), "DISABLED")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terms_of_service?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Version string `json:"version"`
		Config  struct {
			Audit     bool     `json:"audit_logging_enabled"`
			Providers []string `json:"active_providers"`
		} `json:"current_configuration"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, termsVersion, doc.Version)
	assert.False(t, doc.Config.Audit)
	assert.Equal(t, []string{"openai"}, doc.Config.Providers)
}

// blockingProvider holds the turn open until it is cancelled
type blockingProvider struct{ name models.ProviderType }

func (p *blockingProvider) Stream(ctx context.Context, _ *providers.UnifiedRequest, out chan<- providers.StreamChunk) error {
	defer close(out)
	<-ctx.Done()
	return ctx.Err()
}

func (p *blockingProvider) ValidateConfig(*models.Deployment) error { return nil }

func (p *blockingProvider) HealthCheck(context.Context, *models.Deployment) error { return nil }

func (p *blockingProvider) GetInfo() providers.ProviderInfo {
	return providers.ProviderInfo{Name: "blocking-" + string(p.name)}
}

func TestChatTimeoutBecomesErrorChunk(t *testing.T) {
	settings := testSettings()
	settings.ChatTimeout = 200 * time.Millisecond
	srv := newTestServer(t, settings)
	srv.router.RegisterProvider(models.ProviderOpenAI, &blockingProvider{name: models.ProviderOpenAI})
	h := srv.handler()

	start := time.Now()
	rec, chunks := postChat(t, h, chatBody(t, message.NewUserText("hi", nil)))
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	var kinds []stream.ChunkType
	for _, c := range chunks {
		kinds = append(kinds, c.Type)
	}
	assert.Equal(t, []stream.ChunkType{stream.ChunkStart, stream.ChunkStartStep, stream.ChunkError}, kinds)
	assert.Equal(t, "Request timed out", chunks[len(chunks)-1].ErrorText)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(rec.Body.String()), "data: [DONE]"))
}

// withoutTokenizer makes countTokens estimate for model instead of
// loading an encoding
func withoutTokenizer(t *testing.T, model string) {
	t.Helper()
	encodingsMu.Lock()
	encodingFailed[model] = true
	encodingsMu.Unlock()
	t.Cleanup(func() {
		encodingsMu.Lock()
		delete(encodingFailed, model)
		encodingsMu.Unlock()
	})
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestChatRecordsTurnInAuditLog(t *testing.T) {
	withoutTokenizer(t, "gpt-5-mini")
	audit, err := openAuditLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer audit.Close()

	openai := &recordingProvider{name: models.ProviderOpenAI, chunks: []providers.StreamChunk{
		{Type: providers.ChunkReasoning, Data: "look it up"},
		{Type: providers.ChunkText, Data: "Hello"},
		{Type: providers.ChunkSource, SourceID: "s1", URL: "https://example.com", Title: "Example"},
	}}
	srv := newTestServer(t, testSettings(), openai)
	srv.audit = audit
	h := srv.handler()
	logs := captureLog(t)

	msg := message.NewUserText("news?", &message.Metadata{ModelID: "gpt-5-mini", Provider: "openai", UseWebSearch: true})
	rec, chunks := postChat(t, h, chatBody(t, msg))
	require.Equal(t, http.StatusOK, rec.Code)
	requestID := rec.Header().Get(requestIDHeader)
	require.NotEmpty(t, requestID)

	outputHash := generateSignature("Hello")
	inputHash := generateSignature("user: news?\n")
	line := logs.String()
	assert.Contains(t, line, "[HandleChat] "+requestID+" complete: message="+chunks[0].MessageID)
	assert.Contains(t, line, "sources=1")
	assert.Contains(t, line, "input_hash="+inputHash)
	assert.Contains(t, line, "output_hash="+outputHash)

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/v1/audit/"+requestID, nil))
	require.Equal(t, http.StatusOK, get.Code)
	var list struct {
		Data []LLMAuditEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	entry := list.Data[0]
	assert.Equal(t, "Hello", entry.FullOutput)
	assert.Equal(t, "look it up", entry.Reasoning)
	assert.Equal(t, 1, entry.Sources)
	assert.Equal(t, inputHash, entry.InputHash)
	assert.Equal(t, outputHash, entry.OutputHash)
	assert.True(t, entry.WebSearch)
	assert.Equal(t, 2, entry.OutputTokens)

	get = httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/v1/audit/req_unknown", nil))
	assert.Equal(t, http.StatusNotFound, get.Code)
}

func TestAuditRouteWhenDisabled(t *testing.T) {
	h := newTestServer(t, testSettings()).handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/req_1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Audit logging is disabled"}`, rec.Body.String())
}

func TestGetDeployment(t *testing.T) {
	openai := &recordingProvider{name: models.ProviderOpenAI}
	h := newTestServer(t, testSettings(), openai).handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/deployments/openai", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var d DeploymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "openai", d.ID)
	assert.Equal(t, "openai", d.Provider)
	assert.True(t, d.Status.Healthy)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/deployments/anthropic", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Deployment not found"}`, rec.Body.String())
}
