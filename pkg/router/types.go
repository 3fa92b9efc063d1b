package router

import (
	"context"
	"html/template"
	"net/http"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/store"
)

// Component renders one level of a matched route chain. Layouts receive the
// rendered output of the next level as children; pages receive "".
type Component interface {
	Render(rc *RenderContext, children template.HTML) (template.HTML, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(rc *RenderContext, children template.HTML) (template.HTML, error)

// Render implements Component.
func (f ComponentFunc) Render(rc *RenderContext, children template.HTML) (template.HTML, error) {
	return f(rc, children)
}

// PageLoadedHook is implemented by page components that react to a
// committed navigation in a live session.
type PageLoadedHook interface {
	OnPageLoaded(ctx context.Context, api store.API, loc location.Location)
}

// RenderContext is passed to every component of the chain.
type RenderContext struct {
	Context  context.Context
	State    store.State
	Location location.Location
	Params   map[string]string
	Helpers  map[string]any
}

// Data returns the custom state slice registered under name.
func (rc *RenderContext) Data(name string) any {
	if rc.State.Data == nil {
		return nil
	}
	return rc.State.Data[name]
}

// Descriptor is one registered route level: a layout, a page, or the
// not-found page. The loader is attached when the route table is built.
type Descriptor struct {
	// Pattern is the path the descriptor was registered with.
	Pattern string

	// Name is an optional identifier used in logs and the route listing.
	Name string

	Component Component

	// Loader is nil when the level has nothing to preload.
	Loader preload.Preloadable

	// Status is the HTTP status for server renders. Zero means 200.
	Status int
}

// MatchResult is the result of looking up a path.
type MatchResult struct {
	// Chain holds the matched layouts root to leaf followed by the page.
	Chain []*Descriptor

	// Params are the extracted route parameters.
	Params map[string]string

	// Pattern is the matched page pattern, e.g. "/users/:id".
	Pattern string

	// Redirect is set when the path matched a redirect rule. Chain is empty
	// in that case.
	Redirect string

	// NotFound reports that the not-found page was selected.
	NotFound bool
}

// Page returns the leaf descriptor, or nil for redirects.
func (m *MatchResult) Page() *Descriptor {
	if len(m.Chain) == 0 {
		return nil
	}
	return m.Chain[len(m.Chain)-1]
}

// Status returns the HTTP status of the matched page.
func (m *MatchResult) Status() int {
	if p := m.Page(); p != nil && p.Status != 0 {
		return p.Status
	}
	if m.NotFound {
		return http.StatusNotFound
	}
	return http.StatusOK
}

// Loaders returns the chain's loaders in order. Levels without a loader
// yield nil entries.
func (m *MatchResult) Loaders() []preload.Preloadable {
	out := make([]preload.Preloadable, len(m.Chain))
	for i, d := range m.Chain {
		out[i] = d.Loader
	}
	return out
}

// NotFoundError is returned by Match when nothing matched and no not-found
// page is registered.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "router: no route for " + e.Path
}

// StatusCode returns 404.
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// RouteInfo describes one registered route for listings.
type RouteInfo struct {
	Pattern  string
	Kind     string // "page", "layout", "redirect" or "not-found"
	Name     string
	Target   string // redirect target
	Status   int
	Preloads bool
}
