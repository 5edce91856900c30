package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("error executing root command: %s", err)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Chat relay serving a browser UI in front of hosted LLM providers",
		Long: `chatrelay serves a chat page and relays each turn to OpenAI, Anthropic,
Google or Groq, streaming the reply back with reasoning and web search
citations. Audio recorded in the browser is transcribed through Whisper.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, loadSettings(v))
		},
	}
	bindSettings(cmd, v)
	return cmd
}

// run serves until ctx is cancelled, then drains in-flight requests
func run(ctx context.Context, settings Settings) error {
	router, catalogue, deployments, err := InitializeModelRouter(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to initialize model router: %w", err)
	}
	if hc := router.HealthChecker(); hc != nil {
		defer hc.Stop()
	}

	var audit *auditLog
	if settings.AuditEnabled {
		audit, err = openAuditLog(settings.AuditPath)
		if err != nil {
			return err
		}
		defer audit.Close()
	}

	srv := newServer(settings, router, catalogue, deployments, audit)
	handler := srv.handler()

	var servers []*http.Server
	errc := make(chan error, 2)

	if settings.HTTPPort > 0 {
		httpServer := &http.Server{Addr: fmt.Sprintf(":%d", settings.HTTPPort), Handler: handler}
		servers = append(servers, httpServer)
		go func() {
			log.Printf("HTTP server listening on %s", httpServer.Addr)
			errc <- httpServer.ListenAndServe()
		}()
	}

	if settings.HTTPSPort > 0 {
		certPath, keyPath, found := findSSLCertificates(settings.BaseDomain)
		if found {
			httpsServer := &http.Server{Addr: fmt.Sprintf(":%d", settings.HTTPSPort), Handler: handler}
			servers = append(servers, httpsServer)
			go func() {
				log.Printf("HTTPS server listening on %s", httpsServer.Addr)
				errc <- httpsServer.ListenAndServeTLS(certPath, keyPath)
			}()
		} else {
			log.Printf("WARNING: SSL certificates not found, HTTPS disabled")
			log.Printf("Expected cert.pem and key.pem in working directory or valid Let's Encrypt certificates")
		}
	}

	if len(servers) == 0 {
		return errors.New("no listener enabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Shutting down")
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown of %s failed: %v", s.Addr, err)
		}
	}
	return runErr
}
