// ABOUTME: HTTP server that wires the store, admin guard, form relay and metrics
// ABOUTME: Owns the listener lifecycle, health endpoints and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/academy-gateway/internal/auth"
	"github.com/2389/academy-gateway/internal/config"
	"github.com/2389/academy-gateway/internal/metrics"
	"github.com/2389/academy-gateway/internal/proxy"
	"github.com/2389/academy-gateway/internal/settings"
	"github.com/2389/academy-gateway/internal/store"
)

// sessionPruneInterval is how often expired and revoked admin sessions are deleted.
const sessionPruneInterval = time.Hour

// Store is everything the routes need from persistence.
type Store interface {
	auth.SessionStore
	auth.IssuerStore
	settings.Reader
	settings.Writer

	ListGalleryImages(ctx context.Context, f store.GalleryFilter) ([]*store.GalleryImage, error)
	CreateGalleryImage(ctx context.Context, img *store.GalleryImage) error
	DeactivateGalleryImage(ctx context.Context, id string) error
	DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Server serves the academy API.
type Server struct {
	config     *config.Config
	store      Store
	guard      *auth.Guard
	issuer     *auth.Issuer
	relay      *proxy.Gateway
	metrics    *metrics.Metrics
	httpServer *http.Server
	logger     *slog.Logger
}

// New opens the configured database and builds a Server on it.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := store.Open(store.Options{
		Path:        cfg.Database.Path,
		Driver:      cfg.Database.Driver,
		BusyTimeout: cfg.Database.BusyTimeout,
		Logger:      logger.With("component", "store"),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	srv, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithStore builds a Server on an already open store. The Server takes
// ownership and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s Store, logger *slog.Logger) (*Server, error) {
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	m := metrics.New()
	srv := &Server{
		config:  cfg,
		store:   s,
		metrics: m,
		logger:  logger.With("component", "server"),
	}

	srv.guard = auth.NewGuard(verifier, s, logger,
		auth.WithDenyHook(func(r auth.Reason) { m.ObserveAuthDenied(string(r)) }),
	)
	srv.issuer = auth.NewIssuer(s, verifier, cfg.Auth.SessionTTL, logger)
	srv.relay = proxy.New(proxy.Config{
		Timeout:         cfg.Proxy.Timeout,
		AllowedHosts:    cfg.Proxy.AllowedHosts,
		DuplicateWindow: cfg.Proxy.DuplicateWindow,
	}, logger, proxy.WithObserver(m.ObserveSubmission))

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return srv, nil
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	if s.config.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.Handler())
	}

	s.registerRoutes(mux)

	var h http.Handler = mux
	h = recoverPanics(s.logger)(h)
	h = logRequests(s.logger)(h)
	h = s.metrics.Middleware(h)
	return h
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go s.pruneSessions(pruneCtx, sessionPruneInterval)

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// pruneSessions deletes dead admin sessions until ctx is canceled.
func (s *Server) pruneSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpiredAdminSessions(ctx, time.Now())
			if err != nil {
				s.logger.Warn("pruning admin sessions", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("pruned admin sessions", "count", n)
			}
		}
	}
}

// gracefulShutdown performs shutdown with a fresh context, since the run
// context is already canceled.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, waits for in-flight ones and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	s.relay.Close()
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
