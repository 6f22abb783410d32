package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/michalCapo/p-sui/internal/dev"
	"github.com/michalCapo/p-sui/pkg/live"
	"github.com/michalCapo/p-sui/pkg/middleware"
)

// Server ties the live-patch subsystem to HTTP: session cookies, the
// websocket handshake, the poll fallback, and the invalid-target report.
// It exclusively owns the connection registry and the patch dispatcher.
type Server struct {
	config     *Config
	logger     *slog.Logger
	registry   *live.Registry
	dispatcher *live.Dispatcher
	metrics    *live.Metrics
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with the given configuration. A nil config uses
// defaults; zero fields are filled in.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		config.fillDefaults()
	}

	logger := slog.Default().With("component", "server")
	registry := live.NewRegistry(logger)
	dispatcher := live.NewDispatcher(registry, logger)

	s := &Server{
		config:     config,
		logger:     logger,
		registry:   registry,
		dispatcher: dispatcher,
	}

	if config.EnableMetrics {
		s.metrics = live.NewMetrics()
		registry.SetMetrics(s.metrics)
		dispatcher.SetMetrics(s.metrics)
	}

	r := chi.NewRouter()
	if config.EnableTracing {
		r.Use(middleware.OpenTelemetry())
	}
	r.Use(s.withSession)

	r.Get(WebSocketPath, s.handleWebSocket)
	r.Get(PollPath, s.handlePoll)
	r.Post(InvalidPath, s.handleInvalid)
	r.Get(ClientScriptPath, s.handleClientScript)
	if config.EnableMetrics {
		r.Method(http.MethodGet, MetricsPath, promhttp.Handler())
	}

	s.router = r
	return s
}

// Router returns the chi router so applications can mount their own page
// and action routes next to the protocol routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handler returns the server as an http.Handler for mounting in an
// external mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Dispatcher returns the patch dispatcher.
func (s *Server) Dispatcher() *live.Dispatcher {
	return s.dispatcher
}

// Registry returns the connection registry.
func (s *Server) Registry() *live.Registry {
	return s.registry
}

// QueuePatch queues a patch for the session, with an optional single-shot
// cleanup invoked if the target disappears from the client's DOM.
func (s *Server) QueuePatch(session string, patch live.Patch, cleanup func()) {
	s.dispatcher.QueuePatch(session, patch, cleanup)
}

// Run starts the HTTP server and blocks until ctx is cancelled or an
// interrupt/termination signal arrives, then shuts down gracefully. When
// AutoReload is enabled it also runs the development file watcher.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.config.AutoReload {
		paths := s.config.WatchPaths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		watcher := dev.NewWatcher(dev.WatcherConfig{Paths: paths}, s.logger)
		watcher.OnChange(func(string) {
			s.logger.Info("source change detected, reloading browsers")
			s.registry.BroadcastReload()
		})
		go watcher.Start(ctx)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "address", s.config.Address)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server and closes every live connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	s.registry.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
