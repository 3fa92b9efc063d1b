package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/google/uuid"
	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/httpclient"
	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/meta"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/render"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/snapshot"
	"github.com/vango-dev/isorender/pkg/store"
)

// PageRequest is the input of one server render.
type PageRequest struct {
	// URL is the requested path with query, basename already removed.
	URL string

	// Cookies are forwarded to the API by the loader HTTP client.
	Cookies []*http.Cookie

	// Token is the bearer token for API requests, "" for anonymous.
	Token string

	// User is exposed to loaders as the "user" helper.
	User *auth.Claims
}

// Result is the outcome of one server render.
type Result struct {
	// Status is the HTTP status: the route status, or 302 for redirects.
	Status int

	// Redirect is the basename-prefixed target when Status is 302.
	Redirect string

	// Body is the complete HTML document.
	Body []byte

	// Cookies were set by the API during preloading and must be copied to
	// the response.
	Cookies []*http.Cookie

	// State is the store state embedded in the page.
	State store.State

	// SessionID identifies the snapshot saved for the live session.
	SessionID string
}

// RenderPage preloads and renders req.URL.
func (s *Server) RenderPage(ctx context.Context, req PageRequest) (*Result, error) {
	loc, err := location.Parse(req.URL)
	if err != nil {
		return nil, &render.StatusError{Code: http.StatusBadRequest, Err: err}
	}

	hc := httpclient.New(httpclient.Config{
		BaseURL:           s.cfg.APIBaseURL,
		AllowAbsoluteURLs: s.cfg.AllowAbsoluteURLs,
		Cookies:           req.Cookies,
		Token:             func() string { return req.Token },
	})

	helpers := make(map[string]any, len(s.cfg.Helpers)+1)
	maps.Copy(helpers, s.cfg.Helpers)
	if req.User != nil {
		helpers["user"] = req.User
	}

	p := preload.New(s.router,
		preload.WithServer(true),
		preload.WithErrorHandler(s.cfg.ErrorHandler),
		preload.WithHelpers(helpers),
		preload.WithHTTPClient(hc),
		preload.WithCookies(hc.Cookie),
		preload.WithLogger(s.logger),
	)

	mw := append(append([]store.Middleware(nil), s.cfg.StoreMiddleware...), p.Middleware())
	opts := []store.Option{store.WithMiddleware(mw...), store.WithLogger(s.logger)}
	for name, fn := range s.cfg.Reducers {
		opts = append(opts, store.WithReducer(name, fn))
	}
	st := store.New(store.State{}, opts...)

	if err := st.Dispatch(ctx, store.Navigate{Location: loc}); err != nil {
		if r, ok := preload.AsRedirect(err); ok {
			return &Result{
				Status:   http.StatusFound,
				Redirect: r.Location.WithBasename(s.cfg.Basename),
				Cookies:  hc.SetCookies(),
			}, nil
		}
		return nil, err
	}

	// The route table is pure, so looking the path up again yields the
	// chain the preloader just ran.
	res, ok := s.router.Lookup(loc.Pathname)
	if !ok {
		return nil, &router.NotFoundError{Path: loc.Pathname}
	}

	// A server-mode preloader never commits: the render seeds the router
	// state itself so it is embedded in the page.
	route := res.Pattern
	if res.NotFound {
		route = "*"
	}
	if err := st.Dispatch(ctx, store.Commit{
		Location: loc,
		Route:    route,
		Params:   res.Params,
	}); err != nil {
		return nil, err
	}

	state := st.State()
	content, err := render.Chain(&router.RenderContext{
		Context:  ctx,
		State:    state,
		Location: loc,
		Params:   res.Params,
		Helpers:  helpers,
	}, res.Chain)
	if err != nil {
		return nil, err
	}

	sessionID := s.saveSnapshot(ctx, state)

	doc, err := s.document(meta.Collect(s.cfg.Meta, state, render.Components(res.Chain)...))
	if err != nil {
		return nil, err
	}
	doc.State = state
	doc.Content = content
	doc.SessionID = sessionID

	var buf bytes.Buffer
	if err := render.WriteDocument(&buf, doc); err != nil {
		return nil, err
	}
	return &Result{
		Status:    res.Status(),
		Body:      buf.Bytes(),
		Cookies:   hc.SetCookies(),
		State:     state,
		SessionID: sessionID,
	}, nil
}

// RenderBasePage renders the document shell: default metadata and assets,
// no content and no state.
func (s *Server) RenderBasePage() ([]byte, error) {
	doc, err := s.document(s.cfg.Meta)
	if err != nil {
		return nil, err
	}
	doc.ContentNotRendered = true

	var buf bytes.Buffer
	if err := render.WriteDocument(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) document(m meta.Meta) (render.Document, error) {
	doc := render.Document{Meta: m}
	if s.live != nil && s.cfg.LivePath != "" {
		doc.LiveURL = location.Location{Pathname: s.cfg.LivePath}.WithBasename(s.cfg.Basename)
	}
	if s.manifest == nil {
		return doc, nil
	}
	scripts, err := s.manifest.Scripts()
	if err != nil {
		return doc, fmt.Errorf("server: assets: %w", err)
	}
	styles, err := s.manifest.Styles()
	if err != nil {
		return doc, fmt.Errorf("server: assets: %w", err)
	}
	doc.Scripts = scripts
	doc.Styles = styles
	return doc, nil
}

// saveSnapshot stores state for the live session the page will open and
// returns its ID, or "" when there is no live transport.
func (s *Server) saveSnapshot(ctx context.Context, state store.State) string {
	if s.snapshots == nil || s.live == nil {
		return ""
	}
	id := uuid.NewString()
	if err := snapshot.SaveState(ctx, s.snapshots, id, state, s.cfg.SnapshotTTL); err != nil {
		var closed snapshot.ErrStoreClosed
		if !errors.As(err, &closed) {
			s.logger.Warn("snapshot save failed", "error", err)
		}
		return ""
	}
	return id
}
