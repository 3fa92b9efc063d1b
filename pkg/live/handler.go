package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/middleware"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/snapshot"
	"github.com/vango-dev/isorender/pkg/store"
)

var (
	// ErrBadHandshake is returned when the first message is not a hello.
	ErrBadHandshake = errors.New("live: bad handshake")

	// ErrClosed is returned for connections arriving after Close.
	ErrClosed = errors.New("live: handler closed")
)

// Option configures a Handler.
type Option func(*Handler)

// WithSnapshots enables resuming sessions from saved state.
func WithSnapshots(s snapshot.Store) Option {
	return func(h *Handler) { h.snapshots = s }
}

// WithAuth verifies hello tokens and reads the authentication cookie of
// the upgrade request.
func WithAuth(a *auth.Service) Option {
	return func(h *Handler) { h.auth = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// Handler upgrades requests to WebSocket live sessions.
type Handler struct {
	cfg       *Config
	routes    *router.Router
	upgrader  websocket.Upgrader
	snapshots snapshot.Store
	auth      *auth.Service
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewHandler creates a Handler serving routes.
func NewHandler(cfg *Config, routes *router.Router, opts ...Option) *Handler {
	h := &Handler{
		cfg:      cfg.withDefaults(),
		routes:   routes,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "live")
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.cfg.CheckOrigin,
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Debug("upgrade failed", "error", err, "remote", r.RemoteAddr)
		middleware.RecordLiveError("upgrade")
		return
	}
	conn.SetReadLimit(h.cfg.MaxMessageSize)

	hello, err := h.handshake(conn)
	if err != nil {
		if errors.Is(err, ErrBadHandshake) {
			h.reject(conn, CodeBadHandshake, err.Error())
		} else {
			conn.Close()
		}
		middleware.RecordLiveError("handshake")
		return
	}

	token, user, err := h.authenticate(r, hello.Token)
	if err != nil {
		h.reject(conn, CodeUnauthorized, "invalid token")
		middleware.RecordLiveError("unauthorized")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	id, initial, resumed := h.resume(ctx, hello.Session)

	s := h.newSession(ctx, r, conn, id, initial, token, user)
	if err := h.register(s); err != nil {
		h.reject(conn, CodeBadHandshake, err.Error())
		s.cancel()
		return
	}
	defer h.unregister(s)

	if resumed {
		middleware.RecordLiveResume()
	}
	s.logger.Debug("live session opened", "resumed", resumed)
	s.run(resumed)
	s.logger.Debug("live session closed")
}

// Len returns the number of open sessions.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close refuses new connections and closes the open ones. Each session
// persists its state for the resume window on the way out.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	open := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	for _, s := range open {
		s.conn.Close()
	}
}

func (h *Handler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handler) register(s *session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.sessions[s.id] = s
	return nil
}

func (h *Handler) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.id] == s {
		delete(h.sessions, s.id)
	}
}

func (h *Handler) handshake(conn *websocket.Conn) (Message, error) {
	conn.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	if m.Type != TypeHello {
		return m, fmt.Errorf("%w: expected %q, got %q", ErrBadHandshake, TypeHello, m.Type)
	}
	return m, nil
}

// reject sends an error message and closes the connection.
func (h *Handler) reject(conn *websocket.Conn, code, msg string) {
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(errorMessage(code, msg)); err == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), deadline)
	}
	conn.Close()
}

// authenticate returns the bearer token and claims of a connection. A
// token sent with hello takes precedence over the cookie and must be valid.
// An unreadable cookie makes the connection anonymous.
func (h *Handler) authenticate(r *http.Request, token string) (string, *auth.Claims, error) {
	if h.auth == nil {
		return token, nil, nil
	}
	if token != "" {
		claims, err := h.auth.Parse(token)
		if err != nil {
			return "", nil, err
		}
		return token, claims, nil
	}
	token, claims, err := h.auth.User(r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) {
			h.logger.Debug("ignoring auth cookie", "error", err)
		}
		return "", nil, nil
	}
	return token, claims, nil
}

// resume loads the snapshot saved under id. A missing, expired or
// currently connected session yields a fresh ID and an empty state.
func (h *Handler) resume(ctx context.Context, id string) (string, store.State, bool) {
	fresh := uuid.NewString()
	if id == "" || h.snapshots == nil {
		return fresh, store.State{}, false
	}

	h.mu.Lock()
	_, active := h.sessions[id]
	h.mu.Unlock()
	if active {
		return fresh, store.State{}, false
	}

	st, ok, err := snapshot.LoadState(ctx, h.snapshots, id)
	if err != nil {
		h.logger.Warn("snapshot load failed", "session", id, "error", err)
		middleware.RecordLiveError("resume")
		return fresh, store.State{}, false
	}
	if !ok {
		return fresh, store.State{}, false
	}
	// A preload interrupted by the disconnect will never finish.
	st.Preload.Pending = false
	return id, st, true
}
