package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/crlsmrls/lowandslow/metrics"
)

// StatusFunc returns the current engine snapshot for the /status
// endpoint. It must be safe to call from a different goroutine than
// the one driving the engine.
type StatusFunc func() interface{}

// Server is the status server (C12): a small, strictly read-only chi
// HTTP server exposing /healthz, /metrics, and /status. It never
// accepts commands, since spec.md disallows a multi-writer API
// surface over a single-operator engine.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	addr       string
}

// New creates a new status server listening on addr.
func New(addr string, logWriter io.Writer, reg *prometheus.Registry, status StatusFunc) *Server {
	r := chi.NewRouter()

	if logWriter == nil {
		logWriter = os.Stdout
	}
	logger := zerolog.New(logWriter).With().Timestamp().Caller().Logger()

	r.Use(
		hlog.NewHandler(logger),
		metrics.HTTPMetricsMiddleware,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		hlog.RemoteAddrHandler("ip"),
		middleware.RequestID,
		CorrelationIDMiddleware,
		middleware.Recoverer,
	)

	setupRoutes(r, reg, status)

	return &Server{
		router: r,
		addr:   addr,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
	}
}

// Start runs the status server until ctx is cancelled, then shuts it
// down gracefully. Unlike the teacher's standalone signal-handling
// Start, this one takes ctx so main can cancel it alongside the
// engine's own run loop rather than racing two independent signal
// handlers.
func (s *Server) Start(ctx context.Context) error {
	log.Info().Str("addr", s.addr).Msg("starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// ListenAndStopOnSignal is a convenience wrapper matching the
// teacher's standalone-process Start(), used when the status server
// is run without an enclosing engine context (e.g. a future
// stand-alone status-server subcommand).
func (s *Server) ListenAndStopOnSignal() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()
	return s.Start(ctx)
}
