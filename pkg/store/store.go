// Package store is the unidirectional state container shared by the server
// render pipeline and live sessions.
//
// Actions flow through a middleware chain before reaching the reducers:
//
//	st := store.New(store.State{},
//	    store.WithMiddleware(middleware.Prometheus(), preloader.Middleware()),
//	    store.WithReducer("todos", todosReducer),
//	)
//	err := st.Dispatch(ctx, store.Navigate{Location: loc})
//
// A Store is safe for concurrent use. Reducers run under the store lock;
// listeners and middleware run outside it.
package store

import (
	"context"
	"log/slog"
	"sync"
)

// DispatchFunc delivers an action.
type DispatchFunc func(ctx context.Context, a Action) error

// API is the view of the store given to middleware and loaders.
type API interface {
	Dispatch(ctx context.Context, a Action) error
	State() State
}

// Middleware wraps dispatch. The first middleware passed to WithMiddleware
// sees actions first.
type Middleware func(api API) func(next DispatchFunc) DispatchFunc

// Listener is notified after every reduced action with the new state.
type Listener func(a Action, s State)

// Option configures a Store.
type Option func(*Store)

// WithMiddleware appends middleware to the dispatch chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Store) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithReducer registers a reducer for State.Data[name].
func WithReducer(name string, fn ReducerFunc) Option {
	return func(s *Store) {
		s.reducers[name] = fn
	}
}

// WithLogger sets the logger used for listener panics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store holds state and dispatches actions.
type Store struct {
	mu        sync.RWMutex
	state     State
	reducers  map[string]ReducerFunc
	listeners map[int]Listener
	nextID    int

	middleware []Middleware
	dispatch   DispatchFunc
	logger     *slog.Logger
}

// New creates a store with the initial state.
func New(initial State, opts ...Option) *Store {
	s := &Store{
		state:     initial.clone(),
		reducers:  make(map[string]ReducerFunc),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "store")
	}

	dispatch := s.reduceAndNotify
	for i := len(s.middleware) - 1; i >= 0; i-- {
		dispatch = s.middleware[i](s)(dispatch)
	}
	s.dispatch = dispatch
	return s
}

// Dispatch sends a through the middleware chain.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	return s.dispatch(ctx, a)
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) reduceAndNotify(ctx context.Context, a Action) error {
	s.mu.Lock()
	reduce(&s.state, a)
	if len(s.reducers) > 0 {
		if s.state.Data == nil {
			s.state.Data = make(map[string]any, len(s.reducers))
		}
		for name, fn := range s.reducers {
			s.state.Data[name] = fn(s.state.Data[name], a)
		}
	}
	snapshot := s.state.clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		s.notify(l, a, snapshot)
	}
	return nil
}

func (s *Store) notify(l Listener, a Action, st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panic", "action", a.Type(), "panic", r)
		}
	}()
	l(a, st)
}
