// Package isorender wires a route table into a runnable application: the
// server-side renderer, the live transport, snapshot storage, metrics,
// error reporting, static export and the command line.
//
// A program defines its routes and hands them to New:
//
//	routes := router.New()
//	routes.Layout("/", shell)
//	routes.Page("/", home, router.WithLoader(preload.Loader(loadHome)))
//	routes.Page("/users/:id", user, router.WithLoader(preload.Loader(loadUser)))
//
//	func main() {
//	    isorender.New(routes, isorender.WithVersion(version, commit)).Main()
//	}
//
// The resulting binary serves the site, exports it, and lists its routes:
//
//	site serve --port 3000 --dev
//	site export --dir public
//	site routes
package isorender

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/time/rate"

	"github.com/vango-dev/isorender/internal/config"
	"github.com/vango-dev/isorender/internal/errors"
	"github.com/vango-dev/isorender/pkg/assets"
	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/live"
	"github.com/vango-dev/isorender/pkg/middleware"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/server"
	"github.com/vango-dev/isorender/pkg/snapshot"
	"github.com/vango-dev/isorender/pkg/store"
)

// App is an application built around a route table.
type App struct {
	routes *router.Router

	name    string
	version string
	commit  string

	helpers      map[string]any
	errorHandler preload.ErrorHandler
	middleware   []store.Middleware
	reducers     map[string]store.ReducerFunc

	stdout io.Writer
	stderr io.Writer
}

// Option configures an App.
type Option func(*App)

// WithName sets the command name shown in help output. Default: the
// executable name.
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithVersion sets the version printed by the version command and
// reported to Sentry.
func WithVersion(version, commit string) Option {
	return func(a *App) { a.version, a.commit = version, commit }
}

// WithHelpers hands helpers to every loader, on the server and in live
// sessions.
func WithHelpers(helpers map[string]any) Option {
	return func(a *App) { a.helpers = helpers }
}

// WithErrorHandler handles preload failures.
func WithErrorHandler(h preload.ErrorHandler) Option {
	return func(a *App) { a.errorHandler = h }
}

// WithStoreMiddleware adds store middleware ahead of the preloader.
func WithStoreMiddleware(mw ...store.Middleware) Option {
	return func(a *App) { a.middleware = append(a.middleware, mw...) }
}

// WithReducer registers a reducer for the custom state slice name.
func WithReducer(name string, fn store.ReducerFunc) Option {
	return func(a *App) {
		if a.reducers == nil {
			a.reducers = make(map[string]store.ReducerFunc)
		}
		a.reducers[name] = fn
	}
}

// WithOutput redirects command output. Logs go to stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) { a.stdout, a.stderr = stdout, stderr }
}

// New creates an App serving routes.
func New(routes *router.Router, opts ...Option) *App {
	a := &App{
		routes:  routes,
		name:    filepath.Base(os.Args[0]),
		version: "dev",
		commit:  "none",
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes returns the route table.
func (a *App) Routes() *router.Router { return a.routes }

// instance is the wired application for one command.
type instance struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *server.Server
	live      *live.Handler
	snapshots snapshot.Store
	manifest  *assets.Manifest
	sentry    bool
}

// build wires cfg into a server. withLive is false for export.
func (a *App) build(cfg *config.Config, withLive bool) (*instance, error) {
	rt := &instance{cfg: cfg, logger: cfg.NewLogger(a.stderr)}
	slog.SetDefault(rt.logger)

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     a.version,
			SampleRate:  cfg.Sentry.SampleRate,
		})
		if err != nil {
			// Not fatal: errors are still logged.
			rt.logger.Warn(errors.New("R002").Wrap(err).Error())
		} else {
			rt.sentry = true
		}
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		s, err := auth.New(auth.Config{
			CookieName:    cfg.Auth.CookieName,
			AuthKey:       cfg.Auth.AuthKey,
			EncryptKey:    cfg.Auth.EncryptKey,
			JWTSecret:     cfg.Auth.JWTSecret,
			SecureCookies: cfg.Server.SecureCookies,
			MaxAge:        cfg.Auth.MaxAge,
			Proxies:       auth.NewProxies(cfg.Server.TrustedProxies, rt.logger),
		})
		if err != nil {
			return nil, errors.New("C004").WithKey("auth").Wrap(err)
		}
		authService = s
	}

	if cfg.Assets.Manifest != "" {
		m, err := assets.Load(resolve(cfg.Dir(), cfg.Assets.Manifest))
		if err != nil {
			return nil, errors.New("X003").WithKey("assets.manifest").Wrap(err)
		}
		m.SetEntries(cfg.Assets.Entries...)
		rt.manifest = m
	}

	if withLive && cfg.Live.Enabled {
		st, err := openSnapshots(cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		rt.snapshots = st
	}

	mw := make([]store.Middleware, 0, len(a.middleware)+2)
	if cfg.Metrics.Tracing {
		mw = append(mw, middleware.OpenTelemetry())
	}
	if cfg.Metrics.Enabled {
		mw = append(mw, middleware.Prometheus(middleware.WithNamespace(cfg.Metrics.Namespace)))
	}
	mw = append(mw, a.middleware...)

	scfg := server.DefaultConfig()
	scfg.Address = cfg.Address()
	scfg.Basename = cfg.Server.Basename
	scfg.Development = cfg.Server.Development
	scfg.BasePagePath = cfg.Server.BasePagePath
	scfg.HealthPath = cfg.Server.HealthPath
	scfg.StaticPath = cfg.Server.StaticPath
	if cfg.Server.StaticDir != "" {
		scfg.StaticDir = resolve(cfg.Dir(), cfg.Server.StaticDir)
	}
	scfg.MetricsPath = ""
	if cfg.Metrics.Enabled {
		scfg.MetricsPath = cfg.Metrics.Path
	}
	scfg.LivePath = cfg.Live.Path
	scfg.APIBaseURL = cfg.Server.APIBaseURL
	scfg.AllowAbsoluteURLs = cfg.Server.AllowAbsoluteURLs
	scfg.Meta = cfg.Meta
	scfg.Helpers = a.helpers
	scfg.ErrorHandler = a.errorHandler
	scfg.StoreMiddleware = mw
	scfg.Reducers = a.reducers
	scfg.SnapshotTTL = cfg.Snapshot.TTL
	scfg.BehindProxy = cfg.Server.BehindProxy
	scfg.ReportPanics = rt.sentry
	scfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	opts := []server.Option{server.WithLogger(rt.logger.With("component", "server"))}
	if authService != nil {
		opts = append(opts, server.WithAuth(authService))
	}
	if rt.manifest != nil {
		opts = append(opts, server.WithManifest(rt.manifest))
	}

	if withLive && cfg.Live.Enabled {
		lcfg := live.DefaultConfig()
		lcfg.ReadTimeout = cfg.Live.ReadTimeout
		lcfg.PingInterval = 0
		lcfg.Rate = rate.Limit(cfg.Live.Rate)
		lcfg.Burst = cfg.Live.Burst
		lcfg.ResumeWindow = cfg.Live.ResumeWindow
		lcfg.APIBaseURL = cfg.Server.APIBaseURL
		lcfg.AllowAbsoluteURLs = cfg.Server.AllowAbsoluteURLs
		lcfg.Helpers = a.helpers
		lcfg.ErrorHandler = a.errorHandler
		lcfg.StoreMiddleware = mw
		lcfg.Reducers = a.reducers

		lopts := []live.Option{live.WithLogger(rt.logger.With("component", "live"))}
		if rt.snapshots != nil {
			lopts = append(lopts, live.WithSnapshots(rt.snapshots))
		}
		if authService != nil {
			lopts = append(lopts, live.WithAuth(authService))
		}
		rt.live = live.NewHandler(lcfg, a.routes, lopts...)
		opts = append(opts, server.WithLive(rt.live))
	}
	if rt.snapshots != nil {
		opts = append(opts, server.WithSnapshots(rt.snapshots))
	}

	rt.server = server.New(scfg, a.routes, opts...)
	return rt, nil
}

func openSnapshots(cfg config.SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Backend {
	case "redis":
		var opts []snapshot.RedisOption
		if cfg.Prefix != "" {
			opts = append(opts, snapshot.WithRedisPrefix(cfg.Prefix))
		}
		st, err := snapshot.DialRedis(cfg.RedisURL, opts...)
		if err != nil {
			return nil, errors.New("R001").WithKey("snapshot.redis_url").Wrap(err)
		}
		return st, nil
	case "memory", "":
		return snapshot.NewMemoryStore(), nil
	}
	return nil, errors.New("C008").WithKey("snapshot.backend")
}

// closeTimeout bounds the wait for live sessions to save their state.
const closeTimeout = 5 * time.Second

// close stops the live sessions, waits for them to save their state, and
// releases the snapshot store.
func (rt *instance) close() error {
	if rt.live != nil {
		rt.live.Close()
		deadline := time.Now().Add(closeTimeout)
		for rt.live.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if n := rt.live.Len(); n > 0 {
			rt.logger.Warn("live sessions still open at shutdown", "sessions", n)
		}
	}
	var err error
	if rt.snapshots != nil {
		err = rt.snapshots.Close()
	}
	if rt.sentry {
		sentry.Flush(2 * time.Second)
	}
	return err
}

// serve runs the server until ctx is done.
func (rt *instance) serve(ctx context.Context) error {
	if rt.manifest != nil && rt.cfg.Assets.WatchManifest(rt.cfg.Server.Development) {
		path := resolve(rt.cfg.Dir(), rt.cfg.Assets.Manifest)
		if err := assets.Watch(ctx, rt.manifest, path, rt.logger.With("component", "assets"), nil); err != nil {
			rt.logger.Warn("manifest will not be reloaded", "error", err)
		}
	}

	err := rt.server.Run(ctx)
	if cerr := rt.close(); cerr != nil && !stderrors.Is(cerr, snapshot.ErrStoreClosed{}) {
		rt.logger.Warn("closing snapshot store", "error", cerr)
	}
	if err != nil {
		return errors.New("X001").Wrap(err)
	}
	return nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Main runs the command line with os.Args and exits on failure.
func (a *App) Main() {
	ctx := context.Background()
	if err := a.Run(ctx, os.Args[1:]); err != nil {
		errors.Fprint(a.stderr, err)
		os.Exit(1)
	}
}

// Run executes the command line with args.
func (a *App) Run(ctx context.Context, args []string) error {
	cmd := a.Command()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
