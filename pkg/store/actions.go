package store

import (
	"context"

	"github.com/vango-dev/isorender/pkg/location"
)

// Action is a message dispatched to the store.
//
// The set of actions is closed: only the types declared in this package
// implement it. Application-specific messages travel as Custom.
type Action interface {
	// Type returns a stable name used for logging and wire encoding.
	Type() string

	action()
}

// Navigate is a navigation intent. It is consumed by the preload middleware,
// which preloads the target and then dispatches Commit.
type Navigate struct {
	Location location.Location

	// Redirect marks the intent as the completion of a redirect. The
	// resulting commit replaces the current history entry.
	Redirect bool

	// SkipPreload commits without running loaders.
	SkipPreload bool

	// InstantBack records the current page in the instant-back chain so a
	// later back navigation to it skips preloading.
	InstantBack bool
}

// PreloadStarted marks the beginning of a preload session.
type PreloadStarted struct{}

// PreloadFinished clears the pending state. It is dispatched on success and
// when a session is superseded.
type PreloadFinished struct{}

// PreloadFailed reports a failed preload session.
type PreloadFailed struct {
	Err error
}

// Commit applies a navigation to the router state.
type Commit struct {
	Location location.Location

	// Replace overwrites the current history entry instead of pushing.
	Replace bool

	// Instant is set when the transition reused previously loaded state.
	Instant bool

	// InstantBack adds the previous location to the instant-back chain.
	InstantBack bool

	// Route is the matched route pattern, e.g. "/users/:id".
	Route string

	// Params are the matched route parameters.
	Params map[string]string
}

// Request runs Do asynchronously and reports its progress as Custom actions
// named Event+"_PENDING", Event+"_SUCCESS" and Event+"_ERROR".
// It requires AsyncMiddleware.
type Request struct {
	Event string
	Do    func(ctx context.Context) (any, error)
}

// Custom carries an application-defined message to registered reducers.
type Custom struct {
	Name    string
	Payload any
}

// LoadState replaces the whole state, e.g. when resuming a live session.
type LoadState struct {
	State State
}

func (Navigate) Type() string        { return "navigate" }
func (PreloadStarted) Type() string  { return "preload/started" }
func (PreloadFinished) Type() string { return "preload/finished" }
func (PreloadFailed) Type() string   { return "preload/failed" }
func (c Commit) Type() string {
	if c.Replace {
		return "history/replace"
	}
	return "history/push"
}
func (r Request) Type() string   { return "request/" + r.Event }
func (c Custom) Type() string    { return c.Name }
func (LoadState) Type() string   { return "state/load" }

func (Navigate) action()        {}
func (PreloadStarted) action()  {}
func (PreloadFinished) action() {}
func (PreloadFailed) action()   {}
func (Commit) action()          {}
func (Request) action()         {}
func (Custom) action()          {}
func (LoadState) action()       {}
