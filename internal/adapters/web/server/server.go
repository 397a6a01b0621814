// Package server assembles the HTTP surface: device endpoints, the
// operator API, live websocket pushes and Prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ztlan/warden/internal/adapters/web"
	"github.com/ztlan/warden/internal/adapters/web/handlers"
)

// Server owns the HTTP listener and the handler set.
type Server struct {
	Addr string

	WSManager     *web.WSManager
	AuthHandler   *handlers.AuthHandler
	Device        *handlers.DeviceHandler
	Session       *handlers.SessionHandler
	Admission     *handlers.AdmissionHandler
	Observability *handlers.ObservabilityHandler
	Report        *handlers.ReportHandler

	srv *http.Server
}

// Run starts the listener and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)
	instrumented := otelhttp.NewHandler(handler, "warden-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumented,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("web server shutdown error", "error", err)
		}
	}()

	slog.Info("web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
