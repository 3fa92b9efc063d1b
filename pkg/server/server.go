package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/vango-dev/isorender/pkg/assets"
	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/snapshot"
)

// Server renders pages on the server.
type Server struct {
	cfg       *Config
	router    *router.Router
	auth      *auth.Service
	manifest  *assets.Manifest
	snapshots snapshot.Store
	live      http.Handler
	logger    *slog.Logger

	handlerOnce sync.Once
	handler     http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAuth reads the bearer token and user from the authentication cookie.
func WithAuth(a *auth.Service) Option {
	return func(s *Server) { s.auth = a }
}

// WithManifest adds the manifest's scripts and styles to every page.
func WithManifest(m *assets.Manifest) Option {
	return func(s *Server) { s.manifest = m }
}

// WithSnapshots saves the rendered state for the live session.
func WithSnapshots(st snapshot.Store) Option {
	return func(s *Server) { s.snapshots = st }
}

// WithLive mounts the live transport at Config.LivePath.
func WithLive(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server rendering routes.
func New(cfg *Config, routes *router.Router, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:    cfg.withDefaults(),
		router: routes,
		logger: slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() *Config { return s.cfg }

// Router returns the route table.
func (s *Server) Router() *router.Router { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// Run listens on Config.Address until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
