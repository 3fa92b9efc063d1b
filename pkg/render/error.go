package render

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vango-dev/isorender/pkg/preload"
)

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// HTMLError is implemented by errors that provide their own HTML page.
type HTMLError interface {
	HTML() string
}

// StatusError attaches an HTTP status to an error.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode implements StatusCoder.
func (e *StatusError) StatusCode() int { return e.Code }

// ErrorPage is a rendered error response.
type ErrorPage struct {
	Status      int
	ContentType string
	Body        string
}

// Status returns the HTTP status carried by err, or 500.
func Status(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Error renders err. In development the error chain and any recovered
// stack trace are shown as HTML; otherwise the plain message is returned.
func Error(err error, development bool) ErrorPage {
	status := Status(err)

	if development {
		var he HTMLError
		if errors.As(err, &he) {
			return ErrorPage{Status: status, ContentType: "text/html; charset=utf-8", Body: he.HTML()}
		}
		return ErrorPage{Status: status, ContentType: "text/html; charset=utf-8", Body: errorHTML(err, status)}
	}

	msg := "Error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ErrorPage{Status: status, ContentType: "text/plain; charset=utf-8", Body: msg}
}

func errorHTML(err error, status int) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"/><title>")
	fmt.Fprintf(&b, "%d %s", status, escapeHTML(http.StatusText(status)))
	b.WriteString("</title>\n<style>body{font-family:monospace;margin:2em}li{margin:.5em 0}pre{background:#f6f6f6;padding:1em;overflow:auto}</style>\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%d %s</h1>\n<ol>\n", status, escapeHTML(http.StatusText(status)))
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "<li>%s <small>(%T)</small></li>\n", escapeHTML(e.Error()), e)
	}
	b.WriteString("</ol>\n")

	var pe *preload.PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", escapeHTML(string(pe.Stack)))
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
