package preload

import (
	"context"

	"github.com/vango-dev/isorender/pkg/httpclient"
	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/store"
)

// Preloadable is the loader capability of a route descriptor.
type Preloadable interface {
	// Preload starts loading and returns the pending result. It must not
	// return nil.
	Preload(ctx context.Context, pc *Context) Pending

	// PreloadOptions returns scheduling options.
	PreloadOptions() Options
}

// Options controls how a loader is scheduled.
type Options struct {
	// Blocking loaders run after every previous step settled.
	// Non-blocking loaders run concurrently with their non-blocking
	// neighbours.
	Blocking bool
}

// Context is handed to every loader of a navigation.
type Context struct {
	// Dispatch sends actions to the store. Dispatching store.Navigate
	// cancels the current preload (and, on the server, fails with
	// *RedirectError).
	Dispatch store.DispatchFunc

	// State returns the current store state.
	State func() store.State

	Location location.Location
	Params   map[string]string

	// Helpers are application values passed through unchanged.
	Helpers map[string]any

	// HTTP performs requests on behalf of the page. May be nil.
	HTTP *httpclient.Client

	// Cookie returns a request cookie value, or "".
	Cookie func(name string) string

	// Server is true during server-side rendering.
	Server bool
}

// Helper returns a named helper value.
func (c *Context) Helper(name string) any {
	if c.Helpers == nil {
		return nil
	}
	return c.Helpers[name]
}

// LoadFunc is the body of a loader built with Loader.
type LoadFunc func(ctx context.Context, pc *Context) error

// LoaderOption configures Loader.
type LoaderOption func(*Options)

// NonBlocking lets the loader run concurrently with adjacent non-blocking
// loaders.
func NonBlocking() LoaderOption {
	return func(o *Options) {
		o.Blocking = false
	}
}

// Loader adapts fn into a blocking Preloadable. fn runs in its own goroutine.
func Loader(fn LoadFunc, opts ...LoaderOption) Preloadable {
	o := Options{Blocking: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &funcLoader{fn: fn, opts: o}
}

type funcLoader struct {
	fn   LoadFunc
	opts Options
}

func (l *funcLoader) Preload(ctx context.Context, pc *Context) Pending {
	return Go(ctx, func(ctx context.Context) error {
		return l.fn(ctx, pc)
	})
}

func (l *funcLoader) PreloadOptions() Options {
	return l.opts
}
