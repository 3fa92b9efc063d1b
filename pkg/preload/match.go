package preload

import (
	"context"

	"github.com/vango-dev/isorender/pkg/location"
)

// Match is the route matcher result for one location.
type Match struct {
	// Redirect, when set, short-circuits preloading.
	Redirect *location.Location

	// Loaders holds one entry per matched descriptor, root first. Entries
	// are nil for descriptors without a loader.
	Loaders []Preloadable

	Params map[string]string

	// Route is the matched pattern, e.g. "/users/:id".
	Route string

	// Payload is the matcher's own result, handed back to the caller of Run.
	Payload any
}

// Matcher resolves locations. Implementations must be safe for concurrent
// use and free of side effects.
type Matcher interface {
	Match(ctx context.Context, loc location.Location) (*Match, error)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(ctx context.Context, loc location.Location) (*Match, error)

// Match implements Matcher.
func (f MatcherFunc) Match(ctx context.Context, loc location.Location) (*Match, error) {
	return f(ctx, loc)
}
