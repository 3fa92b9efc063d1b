package server

import (
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/render"
)

// Handler returns the HTTP handler. It is built once.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

func (s *Server) path(p string) string {
	return strings.TrimSuffix(s.cfg.Basename, "/") + p
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if s.cfg.BehindProxy {
		r.Use(handlers.ProxyHeaders)
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, s.logRequest)
	})
	r.Use(s.recoverer)
	if s.cfg.ReportPanics {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	if s.cfg.HealthPath != "" {
		r.Use(chimw.Heartbeat(s.path(s.cfg.HealthPath)))
	}

	// The live transport hijacks the connection and must not be compressed.
	if s.live != nil && s.cfg.LivePath != "" {
		r.Handle(s.path(s.cfg.LivePath), s.live)
	}

	r.Group(func(r chi.Router) {
		r.Use(handlers.CompressHandler)

		if s.cfg.MetricsPath != "" {
			r.Handle(s.path(s.cfg.MetricsPath), promhttp.Handler())
		}
		if s.cfg.BasePagePath != "" {
			r.Get(s.path(s.cfg.BasePagePath), s.serveBasePage)
		}
		if s.cfg.StaticDir != "" {
			prefix := s.path(s.cfg.StaticPath)
			r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.cfg.StaticDir))))
		}
	})

	pages := handlers.CompressHandler(http.HandlerFunc(s.servePage))
	r.NotFound(pages.ServeHTTP)
	r.MethodNotAllowed(pages.ServeHTTP)
	return r
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		s.writeError(w, r, &render.StatusError{Code: http.StatusMethodNotAllowed, Err: ErrMethodNotAllowed})
		return
	}

	path, ok := location.StripBasename(r.URL.EscapedPath(), s.cfg.Basename)
	if !ok {
		s.writeError(w, r, &render.StatusError{Code: http.StatusNotFound, Err: ErrOutsideBasename})
		return
	}
	canon, err := location.CanonicalizePath(path)
	if err != nil {
		s.writeError(w, r, &render.StatusError{Code: http.StatusBadRequest, Err: err})
		return
	}
	search := ""
	if r.URL.RawQuery != "" {
		search = "?" + r.URL.RawQuery
	}
	if canon.Changed {
		// 308 keeps the method, unlike 301.
		target := location.Location{Pathname: canon.Path, Search: search}.WithBasename(s.cfg.Basename)
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
		return
	}

	req := PageRequest{URL: canon.Path + search, Cookies: r.Cookies()}
	if s.auth != nil {
		token, claims, err := s.auth.User(r)
		switch {
		case err == nil:
			req.Token, req.User = token, claims
		case !errors.Is(err, auth.ErrNoToken):
			s.logger.Debug("ignoring invalid auth token", "error", err)
		}
	}

	res, err := s.RenderPage(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, c := range res.Cookies {
		http.SetCookie(w, c)
	}
	if res.Redirect != "" {
		http.Redirect(w, r, res.Redirect, res.Status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(res.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(res.Body)
	}
}

func (s *Server) serveBasePage(w http.ResponseWriter, r *http.Request) {
	body, err := s.RenderBasePage()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	page := render.Error(err, s.cfg.Development)
	if page.Status >= http.StatusInternalServerError {
		s.logger.Error("render failed",
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		s.logger.Debug("render error", "path", r.URL.Path, "status", page.Status, "error", err)
	}

	w.Header().Set("Content-Type", page.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(page.Status)
	_, _ = io.WriteString(w, page.Body)
}

// recoverer renders the error page for panics outside of loaders; loader
// panics are already converted to *preload.PanicError by the executor.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.writeError(w, r, &preload.PanicError{Value: v, Stack: debug.Stack()})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.logger.Info("request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"duration", time.Since(p.TimeStamp),
		"request_id", chimw.GetReqID(p.Request.Context()))
}
