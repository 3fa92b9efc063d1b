// Package export prerenders pages to static HTML.
//
// Each path is rendered through the same pipeline as a live request,
// preloading included, and written to a Sink: a local directory or an S3
// bucket. The document shell without content (the base page) is written
// too, so a static host can serve it for paths that were not prerendered.
package export

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/server"
)

// DefaultBasePageKey is where the base page is written.
const DefaultBasePageKey = "isorender-base.html"

const htmlContentType = "text/html; charset=utf-8"

// Renderer renders pages. *server.Server implements it.
type Renderer interface {
	RenderPage(ctx context.Context, req server.PageRequest) (*server.Result, error)
	RenderBasePage() ([]byte, error)
}

// Sink stores exported files.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithConcurrency sets how many pages render at once. Default 4.
func WithConcurrency(n int) Option {
	return func(e *Exporter) { e.concurrency = n }
}

// WithBasePageKey changes the key of the base page. "" skips it.
func WithBasePageKey(key string) Option {
	return func(e *Exporter) { e.basePageKey = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// Exporter renders paths and writes them to a Sink.
type Exporter struct {
	renderer    Renderer
	sink        Sink
	concurrency int
	basePageKey string
	logger      *slog.Logger
}

// New creates an Exporter.
func New(r Renderer, sink Sink, opts ...Option) *Exporter {
	e := &Exporter{
		renderer:    r,
		sink:        sink,
		concurrency: 4,
		basePageKey: DefaultBasePageKey,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "export")
	}
	return e
}

// Page is the outcome of one exported path.
type Page struct {
	Path     string
	Key      string
	Status   int
	Redirect string
	Bytes    int
	Err      error
}

// Report lists the exported pages in path order.
type Report struct {
	Pages []Page
}

// Failed returns the pages that could not be exported.
func (r Report) Failed() []Page {
	var out []Page
	for _, p := range r.Pages {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// Export renders every path. A page failing to render does not stop the
// others; the returned error joins all failures. Sink errors and context
// cancellation abort the export.
func (e *Exporter) Export(ctx context.Context, paths []string) (Report, error) {
	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	if e.basePageKey != "" {
		g.Go(func() error {
			body, err := e.renderer.RenderBasePage()
			if err != nil {
				return fmt.Errorf("export: base page: %w", err)
			}
			return e.sink.Put(gctx, e.basePageKey, body, htmlContentType)
		})
	}

	for _, p := range dedupe(paths) {
		p := p
		g.Go(func() error {
			page, err := e.exportPage(gctx, p)
			mu.Lock()
			report.Pages = append(report.Pages, page)
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	sort.Slice(report.Pages, func(i, j int) bool { return report.Pages[i].Path < report.Pages[j].Path })
	var errs []error
	for _, p := range report.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", p.Path, p.Err))
	}
	return report, errors.Join(errs...)
}

// exportPage renders one path. Render failures are recorded in the page;
// only sink failures are returned.
func (e *Exporter) exportPage(ctx context.Context, p string) (Page, error) {
	page := Page{Path: p}

	key, err := Key(p)
	if err != nil {
		page.Err = err
		return page, nil
	}
	page.Key = key

	res, err := e.renderer.RenderPage(ctx, server.PageRequest{URL: p})
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		e.logger.Warn("page export failed", "path", p, "error", err)
		page.Err = err
		return page, nil
	}

	page.Status = res.Status
	body := res.Body
	if res.Status == http.StatusFound {
		page.Redirect = res.Redirect
		body = redirectPage(res.Redirect)
	}
	page.Bytes = len(body)

	if err := e.sink.Put(ctx, key, body, htmlContentType); err != nil {
		return page, fmt.Errorf("export: %s: %w", key, err)
	}
	e.logger.Debug("page exported", "path", p, "key", key, "status", res.Status)
	return page, nil
}

// Key maps a page path to its file key: "/" is "index.html" and "/a/b" is
// "a/b/index.html". The query and hash are ignored.
func Key(p string) (string, error) {
	canonical, err := location.ValidateNavigationPath(p)
	if err != nil {
		return "", err
	}
	canonical, _, _ = strings.Cut(canonical, "#")
	canonical, _, _ = strings.Cut(canonical, "?")

	clean := strings.Trim(path.Clean(canonical), "/")
	if clean == "" || clean == "." {
		return "index.html", nil
	}
	return clean + "/index.html", nil
}

// StaticPaths returns the route table's pages that need no parameters.
func StaticPaths(routes *router.Router) []string {
	var out []string
	for _, ri := range routes.Routes() {
		if ri.Kind != "page" || strings.ContainsAny(ri.Pattern, ":*") {
			continue
		}
		out = append(out, ri.Pattern)
	}
	return out
}

func redirectPage(to string) []byte {
	u := html.EscapeString(to)
	return []byte(`<!DOCTYPE html><html><head><meta charset="utf-8"/>` +
		`<meta http-equiv="refresh" content="0; url=` + u + `"/>` +
		`<link rel="canonical" href="` + u + `"/></head>` +
		`<body><a href="` + u + `">` + u + `</a></body></html>`)
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
