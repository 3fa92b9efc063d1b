// Package location models the navigation target shared by the server render
// pipeline, the live session and the preload orchestrator.
//
// A Location is a plain value: it is parsed once from a request URL or a
// navigation message, travels through the store and is never mutated.
package location

import (
	"net/url"
	"strings"
)

// Action describes how a location was reached.
type Action string

const (
	// Push adds a new history entry.
	Push Action = "PUSH"

	// Replace overwrites the current history entry.
	Replace Action = "REPLACE"

	// Pop is a browser back/forward transition.
	Pop Action = "POP"
)

// Location is a parsed navigation target.
type Location struct {
	// Pathname is the canonical path, always starting with "/".
	Pathname string `json:"pathname"`

	// Search is the raw query string including the leading "?", or "".
	Search string `json:"search,omitempty"`

	// Hash is the fragment including the leading "#", or "".
	Hash string `json:"hash,omitempty"`

	// Action is how the location was reached. Empty means Push.
	Action Action `json:"action,omitempty"`
}

// Parse parses a relative URL ("/users/1?tab=posts#bio") into a Location.
// Absolute URLs are accepted and reduced to their path, query and fragment.
// The path is canonicalized.
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{Pathname: "/"}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	res, err := CanonicalizePath(path)
	if err != nil {
		return Location{}, err
	}

	loc := Location{Pathname: res.Path}
	if u.RawQuery != "" {
		loc.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		loc.Hash = "#" + u.EscapedFragment()
	}
	return loc, nil
}

// MustParse is like Parse but panics on error. Intended for route tables and tests.
func MustParse(raw string) Location {
	loc, err := Parse(raw)
	if err != nil {
		panic("location: " + err.Error())
	}
	return loc
}

// URL returns the relative URL of the location: pathname, query and hash.
func (l Location) URL() string {
	return l.Pathname + l.Search + l.Hash
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return l.URL()
}

// WithBasename prefixes the location path with basename (e.g. "/app").
// Used when producing server-side redirect URLs for sites mounted under a prefix.
func (l Location) WithBasename(basename string) string {
	basename = strings.TrimSuffix(basename, "/")
	if basename == "" {
		return l.URL()
	}
	if l.Pathname == "/" {
		return basename + l.Search + l.Hash
	}
	return basename + l.URL()
}

// StripBasename removes basename from the front of path.
// The second result reports whether path was under basename.
func StripBasename(path, basename string) (string, bool) {
	basename = strings.TrimSuffix(basename, "/")
	if basename == "" {
		return path, true
	}
	if path == basename {
		return "/", true
	}
	if strings.HasPrefix(path, basename+"/") {
		return path[len(basename):], true
	}
	return path, false
}

// Query returns the parsed query parameters.
func (l Location) Query() url.Values {
	values, _ := url.ParseQuery(strings.TrimPrefix(l.Search, "?"))
	return values
}

// WithAction returns a copy of l reached via a.
func (l Location) WithAction(a Action) Location {
	l.Action = a
	return l
}

// Equal reports whether two locations point at the same resource.
// The action is not compared.
func (l Location) Equal(o Location) bool {
	return l.Pathname == o.Pathname && l.Search == o.Search && l.Hash == o.Hash
}

// SameDocument reports whether l and o differ in hash only.
func (l Location) SameDocument(o Location) bool {
	return l.Pathname == o.Pathname && l.Search == o.Search
}

// ShouldSkipPreload reports whether navigating from prev to next is an
// in-page anchor jump that must not re-run loaders.
func ShouldSkipPreload(prev, next Location) bool {
	return prev.SameDocument(next) && next.Hash != "" && prev.Hash != next.Hash
}
