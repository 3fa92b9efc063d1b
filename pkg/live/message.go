package live

import (
	"encoding/json"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/store"
)

// Message types sent by the client.
const (
	TypeHello    = "hello"
	TypeNavigate = "navigate"
	TypeAction   = "action"
	TypePing     = "ping"
)

// Message types sent by the server, besides the lifecycle and history
// action types of package store.
const (
	TypeWelcome = "welcome"
	TypeState   = "state"
	TypeError   = "error"
	TypePong    = "pong"
)

// Error codes of TypeError messages.
const (
	CodeBadHandshake = "bad_handshake"
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeBadMessage   = "bad_message"
	CodeBadURL       = "bad_url"
	CodeNavigation   = "navigation_failed"
)

// Message is the JSON frame exchanged in both directions. Fields are set
// according to Type.
type Message struct {
	Type string `json:"type"`

	// hello, welcome
	Session string `json:"session,omitempty"`
	Token   string `json:"token,omitempty"`
	Resumed bool   `json:"resumed,omitempty"`

	// navigate
	URL         string          `json:"url,omitempty"`
	Action      location.Action `json:"action,omitempty"`
	InstantBack bool            `json:"instantBack,omitempty"`
	SkipPreload bool            `json:"skipPreload,omitempty"`

	// action
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// history/push, history/replace
	Location *location.Location `json:"location,omitempty"`
	Instant  bool               `json:"instant,omitempty"`

	// preload/failed, error
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`

	State *store.State `json:"state,omitempty"`
}

func errorMessage(code, msg string) Message {
	return Message{Type: TypeError, Code: code, Error: msg}
}

// messageFor converts a reduced action into the message sent to the
// client. ok is false for actions the client does not need.
func messageFor(a store.Action, st store.State) (Message, bool) {
	switch a := a.(type) {
	case store.PreloadStarted, store.PreloadFinished:
		return Message{Type: a.Type()}, true
	case store.PreloadFailed:
		m := Message{Type: a.Type()}
		if a.Err != nil {
			m.Error = a.Err.Error()
		}
		return m, true
	case store.Commit:
		loc := a.Location
		return Message{Type: a.Type(), Location: &loc, Instant: a.Instant, State: &st}, true
	case store.Custom:
		m := Message{Type: TypeAction, Name: a.Name, State: &st}
		if a.Payload != nil {
			if err, ok := a.Payload.(error); ok {
				m.Error = err.Error()
			} else if raw, err := json.Marshal(a.Payload); err == nil {
				m.Payload = raw
			}
		}
		return m, true
	case store.LoadState:
		return Message{Type: TypeState, State: &st}, true
	}
	return Message{}, false
}

// customAction decodes the payload of a client action message. Payloads
// arrive as generic JSON values.
func customAction(m Message) (store.Custom, error) {
	c := store.Custom{Name: m.Name}
	if len(m.Payload) == 0 {
		return c, nil
	}
	var v any
	if err := json.Unmarshal(m.Payload, &v); err != nil {
		return c, err
	}
	c.Payload = v
	return c, nil
}
