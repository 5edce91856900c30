package main

import (
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/models"
)

const (
	termsVersion = "1.1.0"
	termsDate    = "2025-09-08"
	termsFile    = "terms_of_service.json"
)

// providerTerms links the terms that apply when a provider serves a turn
var providerTerms = map[models.ProviderType]TermsReference{
	models.ProviderOpenAI: {
		Name:        "OpenAI Terms of Use",
		URL:         "https://openai.com/policies/terms-of-use",
		Description: "Applies when using GPT models and web search",
	},
	models.ProviderAnthropic: {
		Name:        "Anthropic Terms of Service",
		URL:         "https://www.anthropic.com/legal/consumer-terms",
		Description: "Applies when using Claude models",
	},
	models.ProviderGoogle: {
		Name:        "Google Gemini API Terms",
		URL:         "https://ai.google.dev/gemini-api/terms",
		Description: "Applies when using Gemini models",
	},
	models.ProviderGroq: {
		Name:        "Groq Services Agreement",
		URL:         "https://groq.com/terms-of-use/",
		Description: "Applies when using models hosted on Groq",
	},
}

// TermsDocument is the terms of service, optionally overridden by
// terms_of_service.json in the config directory
type TermsDocument struct {
	Version       string         `json:"version"`
	EffectiveDate string         `json:"effective_date"`
	Title         string         `json:"title"`
	Agreement     string         `json:"agreement"`
	Sections      []TermsSection `json:"sections"`
}

type TermsSection struct {
	Title string   `json:"title"`
	Body  string   `json:"body,omitempty"`
	Items []string `json:"items,omitempty"`
}

type TermsReference struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func defaultTerms() *TermsDocument {
	return &TermsDocument{
		Version:       termsVersion,
		EffectiveDate: termsDate,
		Title:         "Chat Relay Terms of Service",
		Agreement:     "By sending a message you agree to these terms and to the terms of the provider that answers it.",
		Sections: []TermsSection{
			{
				Title: "What is sent where",
				Items: []string{
					"Each message, with the conversation so far, is forwarded to the provider of the selected model.",
					"Attached files travel inside the message as data URLs.",
					"Recorded audio is forwarded to OpenAI for transcription and is not stored.",
					"With web search on, OpenAI may query the web on your behalf.",
				},
			},
			{
				Title: "What is kept",
				Body:  "Nothing, unless the operator enabled audit logging. The current setting is shown above.",
			},
		},
	}
}

// loadTerms reads the override from dir, falling back to the defaults
func loadTerms(dir string) *TermsDocument {
	data, err := os.ReadFile(filepath.Join(dir, termsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return defaultTerms()
	}
	if err != nil {
		log.Printf("[TOS] Failed to read %s: %v", termsFile, err)
		return defaultTerms()
	}
	var doc TermsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[TOS] Failed to parse %s: %v", termsFile, err)
		return defaultTerms()
	}
	return &doc
}

// activeProviderTerms lists the terms of every provider with a client
func (s *server) activeProviderTerms() []TermsReference {
	var refs []TermsReference
	for _, p := range s.router.Configured() {
		if ref, ok := providerTerms[p]; ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// handleTermsOfService handles GET /terms_of_service as HTML, or JSON with
// ?format=json or Accept: application/json
func (s *server) handleTermsOfService(c *gin.Context) {
	doc := loadTerms(s.settings.ConfigDir)
	auditEnabled := s.audit != nil

	if c.Query("format") == "json" || c.GetHeader("Accept") == "application/json" {
		c.JSON(http.StatusOK, gin.H{
			"version":        doc.Version,
			"effective_date": doc.EffectiveDate,
			"title":          doc.Title,
			"agreement":      doc.Agreement,
			"sections":       doc.Sections,
			"current_configuration": gin.H{
				"audit_logging_enabled": auditEnabled,
				"active_providers":      s.router.Configured(),
				"total_models":          len(s.catalogue.List()),
				"healthy_deployments":   len(s.deployments.GetHealthy()),
			},
			"provider_terms": s.activeProviderTerms(),
		})
		return
	}

	c.HTML(http.StatusOK, "terms", gin.H{
		"Doc":          doc,
		"AuditEnabled": auditEnabled,
		"Providers":    s.activeProviderTerms(),
		"Generated":    time.Now().Format("2006-01-02 15:04:05"),
	})
}

var termsTemplate = template.Must(template.New("terms").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Doc.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            background: #0a0a0a;
            color: #e0e0e0;
            padding: 20px;
            max-width: 900px;
            margin: 0 auto;
            line-height: 1.6;
        }
        h1 { color: #00ff41; border-bottom: 2px solid #00ff41; padding-bottom: 10px; }
        h2 { color: #00ccff; margin-top: 30px; }
        .box { background: #1a1a1a; border: 1px solid #333; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .agreement { border-left: 4px solid #ffcc00; font-weight: bold; }
        .on { color: #ff3333; }
        .off { color: #00ff41; }
        code { background: #1a1a1a; padding: 2px 6px; border-radius: 3px; color: #ffcc00; }
        a { color: #00ff41; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .footer { margin-top: 50px; padding-top: 20px; border-top: 1px solid #333; color: #666; text-align: center; }
    </style>
</head>
<body>
    <h1>{{.Doc.Title}}</h1>
    <div class="box">
        <div>Version: <strong>{{.Doc.Version}}</strong></div>
        <div>Effective Date: <strong>{{.Doc.EffectiveDate}}</strong></div>
    </div>
    <div class="box agreement">{{.Doc.Agreement}}</div>
    <div class="box">
        <h2 style="margin-top: 0;">Current Privacy Configuration</h2>
        {{if .AuditEnabled}}<div class="on">Conversation logging: <strong>ENABLED</strong>, every exchange is recorded</div>
        {{else}}<div class="off">Conversation logging: <strong>DISABLED</strong>, nothing is recorded</div>{{end}}
        <p>This setting is controlled by the <code>ENABLE_LLM_AUDIT</code> environment variable.</p>
    </div>
    {{range .Doc.Sections}}
    <h2>{{.Title}}</h2>
    {{if .Body}}<p>{{.Body}}</p>{{end}}
    {{if .Items}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{end}}
    {{end}}
    {{if .Providers}}
    <h2>Active Provider Terms</h2>
    <ul>{{range .Providers}}<li><a href="{{.URL}}" target="_blank">{{.Name}}</a> - {{.Description}}</li>{{end}}</ul>
    {{end}}
    <div class="footer">
        Generated at {{.Generated}} |
        <a href="/routing_table">Routing Table</a> |
        <a href="/terms_of_service?format=json">JSON</a> |
        <a href="/health">Health</a> |
        <a href="/">Home</a>
    </div>
</body>
</html>`))
