package preload

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/store"
)

// testLoader is a named Preloadable counting its invocations.
type testLoader struct {
	name     string
	blocking bool
	fn       func(ctx context.Context, pc *Context) error
	calls    atomic.Int32
}

func blocking(name string) *testLoader    { return &testLoader{name: name, blocking: true} }
func nonBlocking(name string) *testLoader { return &testLoader{name: name} }

func (l *testLoader) with(fn func(ctx context.Context, pc *Context) error) *testLoader {
	l.fn = fn
	return l
}

func (l *testLoader) Preload(ctx context.Context, pc *Context) Pending {
	l.calls.Add(1)
	return Go(ctx, func(ctx context.Context) error {
		if l.fn == nil {
			return nil
		}
		return l.fn(ctx, pc)
	})
}

func (l *testLoader) PreloadOptions() Options {
	return Options{Blocking: l.blocking}
}

func loaderName(p Preloadable) string {
	if l, ok := p.(*testLoader); ok {
		return l.name
	}
	return "?"
}

func chainOf(ls ...*testLoader) []Preloadable {
	out := make([]Preloadable, len(ls))
	for i, l := range ls {
		if l != nil {
			out[i] = l
		}
	}
	return out
}

// routes is a static Matcher.
type routes map[string]*Match

func (r routes) Match(_ context.Context, loc location.Location) (*Match, error) {
	if m, ok := r[loc.Pathname]; ok {
		return m, nil
	}
	return &Match{Route: loc.Pathname}, nil
}

// recorder captures reduced actions in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) listen(a store.Action, s store.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Type()
	switch a := a.(type) {
	case store.Commit:
		name += " " + a.Location.URL()
	case store.PreloadFailed:
		name += " " + a.Err.Error()
	}
	r.events = append(r.events, name)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestStore(t *testing.T, p *Preloader) (*store.Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	st := store.New(store.State{}, store.WithMiddleware(p.Middleware()))
	st.Subscribe(rec.listen)
	return st, rec
}

func navigate(path string) store.Navigate {
	return store.Navigate{Location: location.MustParse(path)}
}
