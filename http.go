package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"chatrelay/message"
	"chatrelay/models"
	"chatrelay/routing"
	"chatrelay/stream"
)

// transcriber forwards audio to the speech-to-text upstream
type transcriber interface {
	Transcribe(ctx context.Context, filename, mediaType string, audio io.Reader) (string, error)
}

// server holds everything the handlers share
type server struct {
	settings    Settings
	router      *routing.Router
	catalogue   *models.ModelRegistry
	deployments *models.DeploymentRegistry
	audit       *auditLog
	limiter     *ipRateLimiter
	transcriber transcriber
	started     time.Time
}

func newServer(settings Settings, router *routing.Router, catalogue *models.ModelRegistry, deployments *models.DeploymentRegistry, audit *auditLog) *server {
	return &server{
		settings:    settings,
		router:      router,
		catalogue:   catalogue,
		deployments: deployments,
		audit:       audit,
		limiter:     newIPRateLimiter(settings.RateLimitRPS, settings.RateLimitBurst),
		transcriber: newTranscriptionProxy(settings.TranscribeURL, settings.OpenAIKey, settings.TranscribeTimeout),
		started:     time.Now(),
	}
}

// handler builds the gin engine behind the CORS wrapper
func (s *server) handler() http.Handler {
	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.SetHTMLTemplate(termsTemplate)

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	engine.GET("/api/models", s.handleCatalogue)
	engine.GET("/v1/models", s.handleListModels)
	engine.GET("/v1/models/:id", s.handleGetModel)
	engine.GET("/v1/deployments", s.handleListDeployments)
	engine.GET("/v1/deployments/:id", s.handleGetDeployment)
	engine.GET("/v1/audit/:request_id", s.handleGetAudit)
	engine.GET("/routing_table", s.handleRoutingTable)
	engine.GET("/terms_of_service", s.handleTermsOfService)

	api := engine.Group("/api", s.limiter.middleware())
	api.POST("/chat", s.handleChat)
	api.POST("/transcribe", s.handleTranscribe)

	engine.POST("/v1/chat/completions", s.limiter.middleware(), s.handleChatCompletions)

	return newCORS().Handler(engine)
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{stream.HeaderName, requestIDHeader},
		MaxAge:         600,
	})
}

// requestLogger logs each request through the standard logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if debugMode || c.Writer.Status() >= http.StatusBadRequest {
			log.Printf("[HTTP] %s %s %d %v %s", c.Request.Method, c.Request.URL.Path,
				c.Writer.Status(), time.Since(start).Round(time.Millisecond), c.ClientIP())
		}
	}
}

// requestIDHeader carries the id the audit log files a turn under
const requestIDHeader = "X-Request-ID"

type chatRequest struct {
	Messages []message.Message `json:"messages"`
}

// handleChat handles POST /api/chat: pick the provider from the last
// message's metadata and relay its stream as a UI message stream
func (s *server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	requestID := generateRequestID()
	meta := message.LastMetadata(req.Messages)
	c.Header(requestIDHeader, requestID)

	sw, err := stream.NewWriter(c.Writer, c.Request)
	if err != nil {
		log.Printf("[HandleChat] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming unsupported"})
		return
	}
	defer func() {
		if err := sw.Close(); err != nil && debugMode {
			log.Printf("[HandleChat] %s: close: %v", requestID, err)
		}
	}()

	if err := sw.Start(message.NewID()); err != nil {
		log.Printf("[HandleChat] %s: client went away: %v", requestID, err)
		return
	}

	decision, err := s.router.Route(requestID, meta)
	if err != nil {
		log.Printf("[HandleChat] %s: %v", requestID, err)
		_ = sw.Error(streamErrorText(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.settings.ChatTimeout)
	defer cancel()

	started := time.Now()
	upstreamReq := newUnifiedRequest(decision, toProviderMessages(req.Messages), nil)
	response, err := LLMWithRouter(ctx, decision, upstreamReq, sw)
	if err != nil {
		log.Printf("[HandleChat] %s: %v", requestID, err)
		_ = sw.Error(streamErrorText(err))
	} else {
		_ = sw.Finish()
	}

	log.Printf("[HandleChat] %s complete: message=%s provider=%s model=%s success=%v sources=%d reasoning_chars=%d input_hash=%s output_hash=%s elapsed=%v",
		requestID, sw.MessageID(), decision.Selection.Provider, decision.Selection.ModelID, err == nil,
		response.Sources, len(response.Reasoning), response.InputHash, response.OutputHash,
		time.Since(started).Round(time.Millisecond))

	s.auditTurn(requestID, decision.Selection, req.Messages, response, err)
}

// auditTurn counts tokens and records the turn when auditing is enabled
func (s *server) auditTurn(requestID string, sel routing.Selection, input any, response *LLMResponse, err error) {
	if s.audit == nil {
		return
	}
	response.InputTokens = countTokens(response.Input, sel.ModelID)
	response.OutputTokens = countTokens(response.Content, sel.ModelID)
	s.audit.LogLLMInteraction(requestID, sel.ModelID, string(sel.Provider), sel.WebSearch, input, response, err)
}

// handleGetAudit handles GET /v1/audit/:request_id, the recorded exchange
// for a turn. It is only answered while auditing is enabled.
func (s *server) handleGetAudit(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit logging is disabled"})
		return
	}
	entries, err := s.audit.GetRequestHistory(c.Param("request_id"))
	if err != nil {
		log.Printf("[AUDIT] Failed to read %s: %v", c.Param("request_id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audit log"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": entries})
}

// handleHealth handles GET /health
func (s *server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status": "healthy",
		"mode":   "production",
		"ports": gin.H{
			"http":  s.settings.HTTPPort,
			"https": s.settings.HTTPSPort,
		},
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if s.settings.HighPortMode {
		health["mode"] = "development"
	}

	configured := s.router.Configured()
	health["llm_configured"] = len(configured) > 0
	health["providers"] = configured
	health["fallback_provider"] = s.router.Fallback()
	health["default_model"] = models.DefaultModelID
	health["available_models"] = len(s.catalogue.List())
	health["healthy_deployments"] = len(s.deployments.GetHealthy())

	healthChecking := false
	if hc := s.router.HealthChecker(); hc != nil {
		healthChecking = hc.Running()
	}
	health["health_checking"] = healthChecking

	health["privacy"] = gin.H{"audit_logging": s.audit != nil}
	health["rate_limited"] = s.limiter != nil

	c.JSON(http.StatusOK, health)
}

// handleRoot serves the chat page
func (s *server) handleRoot(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(chatPage))
}
