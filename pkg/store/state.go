package store

import (
	"maps"

	"github.com/vango-dev/isorender/pkg/location"
)

// MaxInstantBack bounds the instant-back chain.
const MaxInstantBack = 10

// State is the store snapshot. It is embedded into server-rendered pages and
// persisted with live-session snapshots, hence the JSON tags.
type State struct {
	Router      RouterState    `json:"router"`
	Preload     PreloadState   `json:"preload"`
	InstantBack []InstantEntry `json:"instantBack,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// RouterState is the committed navigation state.
type RouterState struct {
	Location location.Location  `json:"location"`
	Previous *location.Location `json:"previous,omitempty"`
	Route    string             `json:"route,omitempty"`
	Params   map[string]string  `json:"params,omitempty"`

	// Committed is false until the first commit. Client-side skip rules only
	// apply to non-initial navigations.
	Committed bool `json:"committed"`
}

// PreloadState drives loading indicators.
type PreloadState struct {
	Pending bool   `json:"pending"`
	Error   string `json:"error,omitempty"`

	// Instant reports whether the last commit skipped preloading because
	// the target was in the instant-back chain.
	Instant bool `json:"instant,omitempty"`
}

// InstantEntry is a location that can be returned to without preloading.
type InstantEntry struct {
	Location location.Location `json:"location"`
	Route    string            `json:"route,omitempty"`
}

// IsInstantTransition reports whether navigating from prev to next stays
// within the instant-back chain: both ends must be recorded in it.
func (s State) IsInstantTransition(prev, next location.Location) bool {
	var hasPrev, hasNext bool
	for _, e := range s.InstantBack {
		if e.Location.Equal(prev) {
			hasPrev = true
		}
		if e.Location.Equal(next) {
			hasNext = true
		}
	}
	return hasPrev && hasNext
}

// clone returns a copy safe to hand out to readers.
func (s State) clone() State {
	out := s
	if s.Router.Params != nil {
		out.Router.Params = maps.Clone(s.Router.Params)
	}
	if s.Router.Previous != nil {
		prev := *s.Router.Previous
		out.Router.Previous = &prev
	}
	if s.InstantBack != nil {
		out.InstantBack = append([]InstantEntry(nil), s.InstantBack...)
	}
	if s.Data != nil {
		out.Data = maps.Clone(s.Data)
	}
	return out
}
