package router

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/preload"
)

// Router is the route table. Routes are registered before serving starts;
// Router is safe for concurrent lookups afterwards.
type Router struct {
	root     *segmentNode
	notFound *Descriptor
	logger   *slog.Logger
}

// New creates an empty router.
func New() *Router {
	return &Router{
		root:   newSegmentNode(""),
		logger: slog.Default().With("component", "router"),
	}
}

// RouteOption configures route registration.
type RouteOption func(*Descriptor, *routeOptions)

type routeOptions struct {
	paramTypes map[string]string
}

// WithLoader attaches the loader preloading this route level.
func WithLoader(l preload.Preloadable) RouteOption {
	return func(d *Descriptor, _ *routeOptions) { d.Loader = l }
}

// WithStatus sets the HTTP status used when the page is rendered on the
// server.
func WithStatus(code int) RouteOption {
	return func(d *Descriptor, _ *routeOptions) { d.Status = code }
}

// WithName names the route.
func WithName(name string) RouteOption {
	return func(d *Descriptor, _ *routeOptions) { d.Name = name }
}

// WithParamType constrains a route parameter. It is equivalent to the
// inline form "/users/:id:int".
func WithParamType(param, typ string) RouteOption {
	return func(_ *Descriptor, o *routeOptions) {
		if o.paramTypes == nil {
			o.paramTypes = make(map[string]string)
		}
		o.paramTypes[param] = typ
	}
}

func (r *Router) descriptor(path string, c Component, opts []RouteOption) *Descriptor {
	d := &Descriptor{Pattern: path, Component: c}
	var o routeOptions
	for _, opt := range opts {
		opt(d, &o)
	}
	r.applyParamTypes(path, o.paramTypes)
	return d
}

// Layout registers a layout wrapping every page under path.
func (r *Router) Layout(path string, c Component, opts ...RouteOption) {
	node := r.root.insert(path)
	node.layout = r.descriptor(path, c, opts)
}

// Page registers a page for path.
//
//	r.Page("/users/:id", users.Show, router.WithLoader(users.Load))
func (r *Router) Page(path string, c Component, opts ...RouteOption) {
	node := r.root.insert(path)
	if node.page != nil || node.redirect != "" {
		r.logger.Warn("route registered twice", "pattern", path)
	}
	node.page = r.descriptor(path, c, opts)
	node.redirect = ""
	node.pattern = path
}

// Redirect registers a redirect from one pattern to another. Parameters of
// from may be reused in to: Redirect("/u/:id", "/users/:id").
func (r *Router) Redirect(from, to string) {
	node := r.root.insert(from)
	node.page = nil
	node.redirect = to
	node.pattern = from
}

// NotFound registers the page rendered when nothing matches. Its status
// defaults to 404.
func (r *Router) NotFound(c Component, opts ...RouteOption) {
	r.notFound = r.descriptor("", c, opts)
}

// applyParamTypes walks path and sets the type of each parameter node named
// in types.
func (r *Router) applyParamTypes(path string, types map[string]string) {
	if len(types) == 0 {
		return
	}
	current := r.root
	for _, seg := range splitPath(path) {
		switch {
		case strings.HasPrefix(seg, "*"):
			return
		case strings.HasPrefix(seg, ":"):
			if current.param == nil {
				return
			}
			name, _ := parseParamSegment(seg)
			if typ, ok := types[name]; ok {
				current.param.constraint = typ
			}
			current = current.param
		default:
			if current = current.lookup(seg); current == nil {
				return
			}
		}
	}
}

// Lookup finds the route chain for a canonical path.
func (r *Router) Lookup(path string) (*MatchResult, bool) {
	params := make(map[string]string)
	segments := splitPath(path)

	node, layouts, ok := r.root.match(segments, params, nil)
	if !ok {
		if r.notFound == nil {
			return nil, false
		}
		chain := append(r.root.layoutsFor(segments), r.notFound)
		return &MatchResult{Chain: chain, Params: map[string]string{}, NotFound: true}, true
	}

	if node.redirect != "" {
		return &MatchResult{
			Params:   params,
			Pattern:  node.pattern,
			Redirect: expandPattern(node.redirect, params),
		}, true
	}
	return &MatchResult{
		Chain:   append(layouts, node.page),
		Params:  params,
		Pattern: node.pattern,
	}, true
}

// Match implements preload.Matcher. The returned Match carries the
// *MatchResult as Payload.
func (r *Router) Match(_ context.Context, loc location.Location) (*preload.Match, error) {
	res, ok := r.Lookup(loc.Pathname)
	if !ok {
		return nil, &NotFoundError{Path: loc.Pathname}
	}

	if res.Redirect != "" {
		to, err := location.Parse(res.Redirect)
		if err != nil {
			return nil, err
		}
		if to.Search == "" {
			to.Search = loc.Search
		}
		return &preload.Match{Redirect: &to, Params: res.Params, Route: res.Pattern, Payload: res}, nil
	}

	route := res.Pattern
	if res.NotFound {
		route = "*"
	}
	return &preload.Match{
		Loaders: res.Loaders(),
		Params:  res.Params,
		Route:   route,
		Payload: res,
	}, nil
}

// Routes lists the registered routes sorted by pattern.
func (r *Router) Routes() []RouteInfo {
	var out []RouteInfo
	r.root.walk(func(n *segmentNode) {
		if n.layout != nil {
			out = append(out, info(n.layout, "layout"))
		}
		switch {
		case n.page != nil:
			out = append(out, info(n.page, "page"))
		case n.redirect != "":
			out = append(out, RouteInfo{Pattern: n.pattern, Kind: "redirect", Target: n.redirect})
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Kind == "layout" && out[j].Kind != "layout"
	})
	if r.notFound != nil {
		nf := info(r.notFound, "not-found")
		nf.Pattern = "*"
		out = append(out, nf)
	}
	return out
}

func info(d *Descriptor, kind string) RouteInfo {
	return RouteInfo{
		Pattern:  d.Pattern,
		Kind:     kind,
		Name:     d.Name,
		Status:   d.Status,
		Preloads: d.Loader != nil,
	}
}

// expandPattern substitutes :name and *name segments of pattern with
// params.
func expandPattern(pattern string, params map[string]string) string {
	if !strings.ContainsAny(pattern, ":*") {
		return pattern
	}
	path, rest, _ := strings.Cut(pattern, "?")
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			name := seg[1:]
			if seg[0] == ':' {
				name, _ = parseParamSegment(seg)
			}
			segments[i] = params[name]
		}
	}
	out := strings.Join(segments, "/")
	if rest != "" {
		out += "?" + rest
	}
	return out
}
