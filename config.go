package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings is the server configuration resolved from flags, environment and .env
type Settings struct {
	HTTPPort     int
	HTTPSPort    int
	HighPortMode bool
	BaseDomain   string

	ConfigDir string

	RateLimitRPS   float64
	RateLimitBurst int

	AuditEnabled bool
	AuditPath    string

	OpenAIBaseURL string
	OpenAIKey     string
	TranscribeURL string

	ChatTimeout       time.Duration
	TranscribeTimeout time.Duration
	ShutdownTimeout   time.Duration
}

const defaultTranscribeURL = "https://api.openai.com/v1/audio/transcriptions"

// bindSettings registers the server flags and binds every key to its
// environment variable of the same name
func bindSettings(cmd *cobra.Command, v *viper.Viper) {
	v.SetDefault("http_port", 0)
	v.SetDefault("https_port", 0)
	v.SetDefault("high_port_mode", false)
	v.SetDefault("base_domain", "")
	v.SetDefault("llm_config_dir", "./config")
	v.SetDefault("rate_limit_rps", 2.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("enable_llm_audit", false)
	v.SetDefault("llm_audit_path", "llm_audit.db")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("transcribe_url", defaultTranscribeURL)
	v.SetDefault("chat_timeout", 30*time.Second)
	v.SetDefault("transcribe_timeout", 60*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.Int("http-port", 0, "HTTP listen port (0 picks 80, or 8080 in high port mode)")
	flags.Int("https-port", 0, "HTTPS listen port (0 picks 443, or 8443 in high port mode; negative disables)")
	flags.Bool("high-port-mode", false, "use non-privileged ports")
	flags.String("config-dir", "./config", "directory holding models.yaml, providers.yaml and routing.yaml")
	flags.Bool("audit", false, "record every exchange in a local SQLite database")

	_ = v.BindPFlag("http_port", flags.Lookup("http-port"))
	_ = v.BindPFlag("https_port", flags.Lookup("https-port"))
	_ = v.BindPFlag("high_port_mode", flags.Lookup("high-port-mode"))
	_ = v.BindPFlag("llm_config_dir", flags.Lookup("config-dir"))
	_ = v.BindPFlag("enable_llm_audit", flags.Lookup("audit"))
}

// loadSettings resolves the effective settings, picking ports by mode
func loadSettings(v *viper.Viper) Settings {
	s := Settings{
		HTTPPort:          v.GetInt("http_port"),
		HTTPSPort:         v.GetInt("https_port"),
		HighPortMode:      v.GetBool("high_port_mode"),
		BaseDomain:        v.GetString("base_domain"),
		ConfigDir:         v.GetString("llm_config_dir"),
		RateLimitRPS:      v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:    v.GetInt("rate_limit_burst"),
		AuditEnabled:      v.GetBool("enable_llm_audit"),
		AuditPath:         v.GetString("llm_audit_path"),
		OpenAIBaseURL:     v.GetString("openai_base_url"),
		OpenAIKey:         v.GetString("openai_api_key"),
		TranscribeURL:     v.GetString("transcribe_url"),
		ChatTimeout:       v.GetDuration("chat_timeout"),
		TranscribeTimeout: v.GetDuration("transcribe_timeout"),
		ShutdownTimeout:   v.GetDuration("shutdown_timeout"),
	}

	if s.HighPortMode {
		log.Println("Running in HIGH_PORT_MODE - using non-privileged ports")
	}
	if s.HTTPPort == 0 {
		s.HTTPPort = 80
		if s.HighPortMode {
			s.HTTPPort = 8080
		}
	}
	if s.HTTPSPort == 0 {
		s.HTTPSPort = 443
		if s.HighPortMode {
			s.HTTPSPort = 8443
		}
	}

	log.Printf("Port configuration: HTTP=%d, HTTPS=%d", s.HTTPPort, s.HTTPSPort)
	return s
}

// findSSLCertificates looks for SSL certificates in common locations
func findSSLCertificates(domain string) (certPath, keyPath string, found bool) {
	// First, check working directory
	if fileExists("cert.pem") && fileExists("key.pem") {
		return "cert.pem", "key.pem", true
	}

	// Check for Let's Encrypt certificates
	if domain != "" {
		for _, basePath := range []string{
			filepath.Join("/etc/letsencrypt/live", domain),
			filepath.Join("/etc/letsencrypt/live", "chat."+domain),
		} {
			certFile := filepath.Join(basePath, "fullchain.pem")
			keyFile := filepath.Join(basePath, "privkey.pem")
			if fileExists(certFile) && fileExists(keyFile) {
				log.Printf("Found Let's Encrypt certificates at %s", basePath)
				return certFile, keyFile, true
			}
		}
	}

	// Check common alternative locations
	alternativePaths := []struct {
		cert string
		key  string
	}{
		{"/etc/ssl/certs/cert.pem", "/etc/ssl/private/key.pem"},
		{"/etc/ssl/cert.pem", "/etc/ssl/key.pem"},
	}
	for _, paths := range alternativePaths {
		if fileExists(paths.cert) && fileExists(paths.key) {
			log.Printf("Found certificates at %s", filepath.Dir(paths.cert))
			return paths.cert, paths.key, true
		}
	}

	return "", "", false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
