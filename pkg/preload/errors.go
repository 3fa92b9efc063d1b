package preload

import (
	"errors"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/store"
)

var (
	// ErrLoaderContract is returned when a loader yields no Pending.
	ErrLoaderContract = errors.New("preload: loader must return an awaitable")

	// ErrHandlerContract is returned on the server when the error handler
	// neither redirected nor returned an error.
	ErrHandlerContract = errors.New("preload: error handler must either redirect or return an error on the server")

	// ErrNoMatch is returned when a Matcher yields neither a match nor an
	// error.
	ErrNoMatch = errors.New("preload: matcher returned no match")

	// ErrSuperseded wraps the failure of a navigation that a newer one had
	// already cancelled. No lifecycle action was dispatched for it.
	ErrSuperseded = errors.New("preload: navigation superseded")
)

// RedirectError asks the render entry point to redirect. It is a control
// signal, not a failure.
type RedirectError struct {
	Location location.Location
}

func (e *RedirectError) Error() string {
	return "preload: redirect to " + e.Location.URL()
}

// AsRedirect reports whether err carries a redirect.
func AsRedirect(err error) (*RedirectError, bool) {
	var r *RedirectError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// Redirect returns a *RedirectError for to, a relative URL.
func Redirect(to string) error {
	loc, err := location.Parse(to)
	if err != nil {
		return err
	}
	return &RedirectError{Location: loc}
}

// ErrorHandler handles preload failures.
//
// Returning the result of ec.Redirect redirects. Returning any other error
// propagates it. On the server returning nil is a contract violation; on the
// client it means the failure was handled.
type ErrorHandler func(err error, ec ErrorContext) error

// ErrorContext describes the failed navigation.
type ErrorContext struct {
	Path     string
	URL      string
	Dispatch store.DispatchFunc
	State    func() store.State
	Server   bool
}

// Redirect returns the redirect signal for to. The failed page is replaced
// in history so that "back" does not return to a half-loaded page.
func (ErrorContext) Redirect(to string) error {
	return Redirect(to)
}
