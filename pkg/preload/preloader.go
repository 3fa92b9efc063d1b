package preload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/isorender/pkg/httpclient"
	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/store"
)

// Kind is the result of processing one navigation intent.
type Kind int

const (
	// Committed means the navigation may be displayed. On the client the
	// commit action has been dispatched.
	Committed Kind = iota

	// Redirected means the navigation was replaced by another location.
	Redirected

	// Failed means preloading or matching failed.
	Failed

	// Cancelled means a newer navigation superseded this one.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Committed:
		return "committed"
	case Redirected:
		return "redirected"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome describes how a navigation intent ended.
type Outcome struct {
	Kind     Kind
	Location location.Location

	// Redirect is the new target when Kind is Redirected.
	Redirect *location.Location

	// Match is the matcher result, when matching succeeded.
	Match *Match

	// Err is the failure when Kind is Failed.
	Err error

	// Preloaded reports whether loaders ran.
	Preloaded bool

	// Instant reports an instant back/forward transition.
	Instant bool

	// Duration is the time spent preloading.
	Duration time.Duration
}

// Stats is reported after a successful preload.
type Stats struct {
	URL     string
	Route   string
	Preload time.Duration
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithServer selects the server execution environment.
func WithServer(server bool) Option {
	return func(p *Preloader) { p.server = server }
}

// WithErrorHandler installs the preload failure handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Preloader) { p.onError = h }
}

// WithHelpers sets values passed to every loader as Context.Helpers.
func WithHelpers(helpers map[string]any) Option {
	return func(p *Preloader) { p.helpers = helpers }
}

// WithHTTPClient sets Context.HTTP.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(p *Preloader) { p.http = c }
}

// WithCookies sets Context.Cookie.
func WithCookies(fn func(name string) string) Option {
	return func(p *Preloader) { p.cookie = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Preloader) { p.logger = l }
}

// WithNavigateHook is called with every accepted client navigation.
func WithNavigateHook(fn func(url string, loc location.Location)) Option {
	return func(p *Preloader) { p.onNavigate = fn }
}

// WithStatsReporter receives preload timings.
func WithStatsReporter(fn func(Stats)) Option {
	return func(p *Preloader) { p.stats = fn }
}

// Preloader turns navigation intents into committed navigations.
//
// One Preloader serves one store: a server request or a live session. At most
// one session is current. Intents are ordered by arrival: an intent that
// arrived before the newest accepted one is cancelled wherever it is.
// Lifecycle and commit actions are dispatched while the Preloader lock is
// held, so store listeners and middleware must not dispatch store.Navigate
// synchronously.
type Preloader struct {
	matcher    Matcher
	server     bool
	onError    ErrorHandler
	helpers    map[string]any
	http       *httpclient.Client
	cookie     func(string) string
	logger     *slog.Logger
	onNavigate func(string, location.Location)
	stats      func(Stats)

	mu       sync.Mutex
	current  *Session
	seq      uint64 // sessions
	arrived  uint64 // intents
	accepted uint64 // ticket of the newest intent past matching
}

// New creates a Preloader resolving locations with m.
func New(m Matcher, opts ...Option) *Preloader {
	p := &Preloader{matcher: m}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default().With("component", "preload")
	}
	return p
}

// Server reports whether p runs in the server environment.
func (p *Preloader) Server() bool { return p.server }

// Current returns the current session, or nil.
func (p *Preloader) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Middleware intercepts store.Navigate actions. On the server a redirect
// outcome is returned as *RedirectError.
func (p *Preloader) Middleware() store.Middleware {
	return func(api store.API) func(next store.DispatchFunc) store.DispatchFunc {
		return func(next store.DispatchFunc) store.DispatchFunc {
			return func(ctx context.Context, a store.Action) error {
				nav, ok := a.(store.Navigate)
				if !ok {
					return next(ctx, a)
				}
				out, err := p.Run(ctx, api, nav)
				if err != nil {
					return err
				}
				if p.server && out.Kind == Redirected {
					return &RedirectError{Location: *out.Redirect}
				}
				return nil
			}
		}
	}
}

// Run processes one navigation intent and blocks until it settles.
//
// The returned error is nil for redirects on the server (see Outcome) and for
// handled or logged failures on the client. A failure of a superseded intent
// is returned wrapped in ErrSuperseded with a Cancelled outcome.
func (p *Preloader) Run(ctx context.Context, api store.API, intent store.Navigate) (Outcome, error) {
	loc := intent.Location
	ticket := p.arrive()
	if !p.server && p.onNavigate != nil {
		p.onNavigate(loc.URL(), loc)
	}

	m, err := p.matcher.Match(ctx, loc)
	if err == nil && m == nil {
		err = fmt.Errorf("%w for %s", ErrNoMatch, loc.Pathname)
	}
	if err != nil {
		if p.stale(ticket) {
			return superseded(Outcome{Kind: Cancelled, Location: loc, Err: err})
		}
		return p.handleError(ctx, api, ticket, intent, err)
	}
	if m.Redirect != nil {
		return p.redirect(ctx, api, ticket, intent, *m.Redirect)
	}

	skip, instant := p.shouldSkip(api.State(), intent)
	var plan Plan
	if !skip {
		plan = BuildPlan(m.Loaders)
	}

	s, ok := p.begin(ctx, api, ticket, plan != nil)
	if !ok {
		return Outcome{Kind: Cancelled, Location: loc, Match: m}, nil
	}
	if s == nil {
		return p.commit(ctx, api, ticket, intent, m, instant, false, 0)
	}

	pc := &Context{
		Dispatch: p.loaderDispatch(api, s),
		State:    api.State,
		Location: loc,
		Params:   m.Params,
		Helpers:  p.helpers,
		HTTP:     p.http,
		Cookie:   p.cookie,
		Server:   p.server,
	}

	err = Execute(ctx, plan, s, pc)
	elapsed := time.Since(s.StartedAt())
	if err != nil {
		settled := p.end(ctx, api, s, err)
		_, redirecting := AsRedirect(err)
		if !settled && !(p.server && redirecting) {
			return superseded(Outcome{Kind: Cancelled, Location: loc, Match: m, Err: err, Preloaded: true, Duration: elapsed})
		}
		out, herr := p.handleError(ctx, api, ticket, intent, err)
		out.Match = m
		out.Preloaded = true
		out.Duration = elapsed
		return out, herr
	}
	if !p.end(ctx, api, s, nil) {
		return Outcome{Kind: Cancelled, Location: loc, Match: m, Preloaded: true, Duration: elapsed}, nil
	}

	if p.stats != nil {
		p.stats(Stats{URL: loc.URL(), Route: m.Route, Preload: elapsed})
	}
	if elapsed > 30*time.Millisecond {
		p.logger.Debug("page preloaded", "path", loc.Pathname, "duration", elapsed)
	}
	return p.commit(ctx, api, ticket, intent, m, false, true, elapsed)
}

func superseded(out Outcome) (Outcome, error) {
	return out, fmt.Errorf("%w: %w", ErrSuperseded, out.Err)
}

// arrive hands out the ticket ordering an intent against later ones.
func (p *Preloader) arrive() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arrived++
	return p.arrived
}

// stale reports whether a newer intent than ticket was accepted.
func (p *Preloader) stale(ticket uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ticket < p.accepted
}

// begin accepts the intent holding ticket and cancels the current session.
// It reports false when a newer intent was accepted first. With
// withSession it starts and returns a new session; otherwise the session
// is nil.
func (p *Preloader) begin(ctx context.Context, api store.API, ticket uint64, withSession bool) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ticket < p.accepted {
		return nil, false
	}
	p.accepted = ticket
	p.supersede(ctx, api)
	if !withSession {
		return nil, true
	}

	p.seq++
	s := NewSession(p.seq)
	p.current = s
	p.dispatchLifecycle(ctx, api, store.PreloadStarted{})
	return s, true
}

// supersede cancels the current session and closes it with PreloadFinished.
// p.mu must be held.
func (p *Preloader) supersede(ctx context.Context, api store.API) {
	if prev := p.current; prev != nil {
		p.current = nil
		if prev.Cancel() {
			p.dispatchLifecycle(ctx, api, store.PreloadFinished{})
		}
	}
}

// Stop cancels the current session and every intent still in flight. It is
// called when the store is going away, so that the running session still
// gets its terminal PreloadFinished.
func (p *Preloader) Stop(ctx context.Context, api store.API) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arrived++
	p.accepted = p.arrived
	p.supersede(ctx, api)
}

// end dispatches the terminal lifecycle action of s unless it was cancelled.
// It reports whether s settled normally.
func (p *Preloader) end(ctx context.Context, api store.API, s *Session, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == s {
		p.current = nil
	}
	if !s.settle() {
		return false
	}
	if err != nil {
		p.dispatchLifecycle(ctx, api, store.PreloadFailed{Err: err})
	} else {
		p.dispatchLifecycle(ctx, api, store.PreloadFinished{})
	}
	return true
}

func (p *Preloader) dispatchLifecycle(ctx context.Context, api store.API, a store.Action) {
	if err := api.Dispatch(ctx, a); err != nil {
		p.logger.Warn("lifecycle dispatch failed", "action", a.Type(), "error", err)
	}
}

// loaderDispatch is the dispatch handed to loaders: a navigation started by a
// loader supersedes the session that is running it.
func (p *Preloader) loaderDispatch(api store.API, s *Session) store.DispatchFunc {
	return func(ctx context.Context, a store.Action) error {
		nav, ok := a.(store.Navigate)
		if !ok {
			return api.Dispatch(ctx, a)
		}

		p.mu.Lock()
		if s.Cancel() {
			if p.current == s {
				p.current = nil
			}
			p.dispatchLifecycle(ctx, api, store.PreloadFinished{})
		}
		p.mu.Unlock()

		if p.server {
			return &RedirectError{Location: nav.Location}
		}
		return api.Dispatch(ctx, nav)
	}
}

func (p *Preloader) shouldSkip(st store.State, intent store.Navigate) (skip, instant bool) {
	if intent.SkipPreload {
		return true, false
	}
	if p.server || !st.Router.Committed {
		return false, false
	}
	prev, next := st.Router.Location, intent.Location
	if location.ShouldSkipPreload(prev, next) {
		return true, false
	}
	if next.Action == location.Pop && st.IsInstantTransition(prev, next) {
		return true, true
	}
	return false, false
}

func (p *Preloader) commit(ctx context.Context, api store.API, ticket uint64, intent store.Navigate, m *Match, instant, preloaded bool, d time.Duration) (Outcome, error) {
	out := Outcome{
		Kind:      Committed,
		Location:  intent.Location,
		Match:     m,
		Preloaded: preloaded,
		Instant:   instant,
		Duration:  d,
	}
	if p.server {
		return out, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ticket < p.accepted {
		out.Kind = Cancelled
		return out, nil
	}
	err := api.Dispatch(ctx, store.Commit{
		Location:    intent.Location,
		Replace:     intent.Redirect,
		Instant:     instant,
		InstantBack: intent.InstantBack,
		Route:       m.Route,
		Params:      m.Params,
	})
	return out, err
}

func (p *Preloader) redirect(ctx context.Context, api store.API, ticket uint64, intent store.Navigate, to location.Location) (Outcome, error) {
	out := Outcome{Kind: Redirected, Location: intent.Location, Redirect: &to}
	if p.server {
		return out, nil
	}
	if p.stale(ticket) {
		out.Kind, out.Redirect = Cancelled, nil
		return out, nil
	}
	return out, api.Dispatch(ctx, store.Navigate{Location: to, Redirect: true})
}

func (p *Preloader) handleError(ctx context.Context, api store.API, ticket uint64, intent store.Navigate, err error) (Outcome, error) {
	if r, ok := AsRedirect(err); ok {
		return p.redirect(ctx, api, ticket, intent, r.Location)
	}

	failed := Outcome{Kind: Failed, Location: intent.Location, Err: err}
	if p.onError == nil {
		if p.server {
			return failed, err
		}
		p.logger.Error("preload failed", "url", intent.Location.URL(), "error", err)
		return failed, nil
	}

	herr := p.onError(err, ErrorContext{
		Path: intent.Location.Pathname,
		URL:  intent.Location.URL(),
		Dispatch: func(ctx context.Context, a store.Action) error {
			if nav, ok := a.(store.Navigate); ok && p.server {
				return &RedirectError{Location: nav.Location}
			}
			return api.Dispatch(ctx, a)
		},
		State:  api.State,
		Server: p.server,
	})
	if r, ok := AsRedirect(herr); ok {
		return p.redirect(ctx, api, ticket, intent, r.Location)
	}
	if herr != nil {
		failed.Err = herr
		if p.server {
			return failed, herr
		}
		p.logger.Error("preload failed", "url", intent.Location.URL(), "error", herr)
		return failed, nil
	}
	if p.server {
		return failed, fmt.Errorf("%w: %v", ErrHandlerContract, err)
	}
	return failed, nil
}
