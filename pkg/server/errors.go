package server

import "errors"

var (
	// ErrMethodNotAllowed is returned for page requests other than GET and
	// HEAD.
	ErrMethodNotAllowed = errors.New("server: method not allowed")

	// ErrOutsideBasename is returned for paths not under the basename.
	ErrOutsideBasename = errors.New("server: path outside basename")
)
