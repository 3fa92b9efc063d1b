package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/httpclient"
	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/middleware"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/snapshot"
	"github.com/vango-dev/isorender/pkg/store"
)

const persistTimeout = 5 * time.Second

// session is one live connection.
type session struct {
	id     string
	h      *Handler
	cfg    *Config
	conn   *websocket.Conn
	logger *slog.Logger

	store       *store.Store
	preloader   *preload.Preloader
	limiter     *rate.Limiter
	unsubscribe func()

	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks navigations, actions and page-loaded hooks.
	wg sync.WaitGroup

	send       chan Message
	done       chan struct{}
	writerDone chan struct{}
}

func (h *Handler) newSession(ctx context.Context, r *http.Request, conn *websocket.Conn, id string, initial store.State, token string, user *auth.Claims) *session {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:         id,
		h:          h,
		cfg:        h.cfg,
		conn:       conn,
		logger:     h.logger.With("session", id),
		limiter:    rate.NewLimiter(h.cfg.Rate, h.cfg.Burst),
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan Message, h.cfg.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	hc := httpclient.New(httpclient.Config{
		BaseURL:           h.cfg.APIBaseURL,
		AllowAbsoluteURLs: h.cfg.AllowAbsoluteURLs,
		Cookies:           r.Cookies(),
		Token:             func() string { return token },
	})

	helpers := make(map[string]any, len(h.cfg.Helpers)+1)
	maps.Copy(helpers, h.cfg.Helpers)
	if user != nil {
		helpers["user"] = user
	}

	s.preloader = preload.New(h.routes,
		preload.WithErrorHandler(h.cfg.ErrorHandler),
		preload.WithHelpers(helpers),
		preload.WithHTTPClient(hc),
		preload.WithCookies(hc.Cookie),
		preload.WithLogger(s.logger),
		preload.WithNavigateHook(func(url string, _ location.Location) {
			s.logger.Debug("navigate", "url", url)
		}),
	)

	mw := append([]store.Middleware(nil), h.cfg.StoreMiddleware...)
	mw = append(mw, store.AsyncMiddleware(), s.preloader.Middleware())
	opts := []store.Option{store.WithMiddleware(mw...), store.WithLogger(s.logger)}
	for name, fn := range h.cfg.Reducers {
		opts = append(opts, store.WithReducer(name, fn))
	}
	s.store = store.New(initial, opts...)
	s.unsubscribe = s.store.Subscribe(s.onAction)
	return s
}

// run serves the connection until it closes.
func (s *session) run(resumed bool) {
	middleware.RecordLiveSessionOpen()
	defer middleware.RecordLiveSessionClose()

	go s.writeLoop()

	st := s.store.State()
	s.enqueue(Message{Type: TypeWelcome, Session: s.id, Resumed: resumed, State: &st})

	s.readLoop()
	s.shutdown()
}

func (s *session) readLoop() {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				s.logger.Debug("read error", "error", err)
				middleware.RecordLiveError("read")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.enqueue(errorMessage(CodeBadMessage, "invalid JSON"))
			continue
		}
		s.handle(m)
	}
}

func (s *session) handle(m Message) {
	switch m.Type {
	case TypePing:
		s.enqueue(Message{Type: TypePong})
	case TypeNavigate:
		if s.allow() {
			s.navigate(m)
		}
	case TypeAction:
		if s.allow() {
			s.action(m)
		}
	case TypeHello:
		s.enqueue(errorMessage(CodeBadMessage, "already connected"))
	default:
		s.enqueue(errorMessage(CodeBadMessage, "unknown message type "+m.Type))
	}
}

func (s *session) allow() bool {
	if s.limiter.Allow() {
		return true
	}
	middleware.RecordLiveError("rate_limited")
	s.enqueue(errorMessage(CodeRateLimited, "too many messages"))
	return false
}

// navigate starts preloading m.URL. Navigations run concurrently so a newer
// one can supersede an older one that is still preloading.
func (s *session) navigate(m Message) {
	path, err := location.ValidateNavigationPath(m.URL)
	if err != nil {
		s.enqueue(errorMessage(CodeBadURL, err.Error()))
		return
	}
	loc, err := location.Parse(path)
	if err != nil {
		s.enqueue(errorMessage(CodeBadURL, err.Error()))
		return
	}
	switch m.Action {
	case "", location.Push, location.Replace, location.Pop:
	default:
		s.enqueue(errorMessage(CodeBadMessage, "unknown history action "+string(m.Action)))
		return
	}

	intent := store.Navigate{
		Location:    loc.WithAction(m.Action),
		InstantBack: m.InstantBack,
		SkipPreload: m.SkipPreload,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.store.Dispatch(s.ctx, intent); err != nil {
			if errors.Is(err, preload.ErrSuperseded) {
				s.logger.Debug("superseded navigation failed", "url", intent.Location.URL(), "error", err)
				return
			}
			if s.ctx.Err() == nil {
				s.logger.Warn("navigation failed", "url", intent.Location.URL(), "error", err)
				s.enqueue(errorMessage(CodeNavigation, err.Error()))
			}
			return
		}
		s.persist()
	}()
}

func (s *session) action(m Message) {
	if m.Name == "" {
		s.enqueue(errorMessage(CodeBadMessage, "action without name"))
		return
	}
	a, err := customAction(m)
	if err != nil {
		s.enqueue(errorMessage(CodeBadMessage, "invalid action payload"))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.store.Dispatch(s.ctx, a); err != nil && s.ctx.Err() == nil {
			s.enqueue(errorMessage(CodeBadMessage, err.Error()))
		}
	}()
}

// onAction is the store listener. It runs on the dispatching goroutine and
// must not block.
func (s *session) onAction(a store.Action, st store.State) {
	if m, ok := messageFor(a, st); ok {
		s.enqueue(m)
	}
	if c, ok := a.(store.Commit); ok {
		s.pageLoaded(c.Location)
	}
}

// pageLoaded calls the OnPageLoaded hook of the committed page. Listeners
// fire inside tracked dispatches, so adding to wg here cannot race Wait.
func (s *session) pageLoaded(loc location.Location) {
	res, ok := s.h.routes.Lookup(loc.Pathname)
	if !ok {
		return
	}
	page := res.Page()
	if page == nil {
		return
	}
	hook, ok := page.Component.(router.PageLoadedHook)
	if !ok {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("page loaded hook panic", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		hook.OnPageLoaded(s.ctx, s.store, loc)
	}()
}

// enqueue queues m for the write loop. A full buffer means the client is
// not reading; the connection is closed, which ends the read loop.
func (s *session) enqueue(m Message) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- m:
	default:
		s.logger.Warn("send buffer full, closing connection")
		middleware.RecordLiveError("slow_consumer")
		s.conn.Close()
	}
}

func (s *session) writeLoop() {
	defer close(s.writerDone)
	defer s.conn.Close()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case m := <-s.send:
			if err := s.write(m); err != nil {
				s.logger.Debug("write error", "error", err)
				middleware.RecordLiveError("write")
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping error", "error", err)
				return
			}

		case <-s.done:
			for {
				select {
				case m := <-s.send:
					if s.write(m) != nil {
						return
					}
				default:
					deadline := time.Now().Add(s.cfg.WriteTimeout)
					s.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
					return
				}
			}
		}
	}
}

func (s *session) write(m Message) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteJSON(m)
}

// shutdown cancels the session's work, waits for it and saves the state
// for a reconnecting client.
func (s *session) shutdown() {
	s.preloader.Stop(s.ctx, s.store)
	s.cancel()
	s.wg.Wait()
	s.unsubscribe()
	s.persist()

	close(s.done)
	<-s.writerDone
}

func (s *session) persist() {
	if s.h.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), persistTimeout)
	defer cancel()

	err := snapshot.SaveState(ctx, s.h.snapshots, s.id, s.store.State(), s.cfg.ResumeWindow)
	if err != nil {
		var closed snapshot.ErrStoreClosed
		if !errors.As(err, &closed) {
			s.logger.Warn("snapshot save failed", "error", err)
		}
	}
}
