package location

import (
	"errors"
	"net/url"
	"strings"
)

// Path canonicalization errors.
var (
	ErrInvalidPath           = errors.New("location: invalid path")
	ErrBackslashInPath       = errors.New("location: path contains backslash")
	ErrNullByteInPath        = errors.New("location: path contains null byte")
	ErrInvalidPercentEscape  = errors.New("location: invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("location: path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("location: encoded slash in path segment")
)

// CanonicalResult is the outcome of CanonicalizePath.
type CanonicalResult struct {
	// Path is the canonical path without query string.
	Path string

	// Query is the query string without the leading "?".
	Query string

	// Changed reports whether canonicalization modified the path.
	Changed bool
}

// CanonicalizePath normalizes a request path:
//   - trailing slash removed (except for "/")
//   - repeated slashes collapsed
//   - "." and ".." segments resolved
//
// Backslashes, NUL bytes, malformed percent escapes and ".." segments that
// climb above the root are rejected. A query string, if present, is
// returned untouched.
func CanonicalizePath(input string) (CanonicalResult, error) {
	if input == "" {
		return CanonicalResult{Path: "/", Changed: true}, nil
	}

	path, query, _ := strings.Cut(input, "?")

	if strings.Contains(path, "\\") {
		return CanonicalResult{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return CanonicalResult{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return CanonicalResult{}, err
		}
	}

	original := path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return CanonicalResult{}, ErrPathEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	path = "/" + strings.Join(out, "/")

	return CanonicalResult{
		Path:    path,
		Query:   query,
		Changed: path != original,
	}, nil
}

// ValidateNavigationPath checks that a client-supplied navigation target is a
// local path and returns it canonicalized, query included. Absolute and
// protocol-relative URLs are rejected to prevent open redirects.
func ValidateNavigationPath(path string) (string, error) {
	if strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "//") ||
		!strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}

	rest, hash, _ := strings.Cut(path, "#")
	res, err := CanonicalizePath(rest)
	if err != nil {
		return "", err
	}

	out := res.Path
	if res.Query != "" {
		out += "?" + res.Query
	}
	if hash != "" {
		out += "#" + hash
	}
	return out, nil
}

// DecodeSegment unescapes a single path segment. Unless the segment feeds a
// catch-all parameter, an encoded "/" is rejected.
func DecodeSegment(segment string, catchAll bool) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !catchAll && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
