package server

import (
	"time"

	"github.com/vango-dev/isorender/pkg/meta"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/store"
)

// Config configures a Server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Basename is the path prefix the site is mounted under, e.g. "/app".
	Basename string

	// Development renders detailed error pages.
	Development bool

	// Paths

	// BasePagePath serves the document shell without content.
	// Default: "/isorender-base". Empty disables it.
	BasePagePath string

	// LivePath mounts the live handler. Default: "/_live".
	LivePath string

	// MetricsPath exposes Prometheus metrics. Empty disables it.
	MetricsPath string

	// HealthPath answers health checks. Default: "/healthz".
	HealthPath string

	// StaticDir is served under StaticPath when set.
	StaticDir  string
	StaticPath string

	// Loader HTTP client

	// APIBaseURL is prepended to the relative URLs loaders request,
	// e.g. "http://127.0.0.1:8081".
	APIBaseURL string

	// AllowAbsoluteURLs lets loaders request other hosts.
	AllowAbsoluteURLs bool

	// Rendering

	// Meta holds the default page metadata.
	Meta meta.Meta

	// Helpers are handed to every loader. The "user" helper is added per
	// request from the authentication cookie.
	Helpers map[string]any

	// ErrorHandler handles preload failures. On the server it must redirect
	// or return an error.
	ErrorHandler preload.ErrorHandler

	// StoreMiddleware runs before the preloader on every render.
	StoreMiddleware []store.Middleware

	// Reducers are registered on every render store.
	Reducers map[string]store.ReducerFunc

	// SnapshotTTL is how long the rendered state is kept for the live
	// session to pick up. Default: 2 minutes.
	SnapshotTTL time.Duration

	// Security

	// BehindProxy trusts X-Forwarded-For, X-Forwarded-Proto and Forwarded
	// headers. Enable only behind a reverse proxy that sets them.
	BehindProxy bool

	// ReportPanics sends recovered panics to Sentry. sentry.Init must have
	// been called.
	ReportPanics bool

	// Server lifecycle

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		BasePagePath:      "/isorender-base",
		LivePath:          "/_live",
		HealthPath:        "/healthz",
		StaticPath:        "/assets/",
		SnapshotTTL:       2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// withDefaults fills unset durations and the address. Paths are left as
// given so they can be disabled.
func (c *Config) withDefaults() *Config {
	out := *c
	d := DefaultConfig()
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.StaticPath == "" {
		out.StaticPath = d.StaticPath
	}
	if out.SnapshotTTL == 0 {
		out.SnapshotTTL = d.SnapshotTTL
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	return &out
}
