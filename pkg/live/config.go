package live

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/store"
)

// Config configures the live handler.
type Config struct {
	// ReadTimeout is how long a connection may stay silent. Pongs count.
	ReadTimeout time.Duration

	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the wait for the hello message.
	HandshakeTimeout time.Duration

	// PingInterval is the heartbeat period. Must be below ReadTimeout.
	PingInterval time.Duration

	// MaxMessageSize limits incoming messages in bytes.
	MaxMessageSize int64

	// SendBuffer is the number of outgoing messages queued per connection.
	SendBuffer int

	// Rate and Burst limit incoming navigate and action messages.
	Rate  rate.Limit
	Burst int

	// ResumeWindow is how long the state of a closed connection is kept
	// for a reconnecting client.
	ResumeWindow time.Duration

	// CheckOrigin validates the upgrade request origin. Default:
	// SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// APIBaseURL prefixes relative loader API paths.
	APIBaseURL        string
	AllowAbsoluteURLs bool

	Helpers         map[string]any
	ErrorHandler    preload.ErrorHandler
	StoreMiddleware []store.Middleware
	Reducers        map[string]store.ReducerFunc
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBuffer:       64,
		Rate:             5,
		Burst:            10,
		ResumeWindow:     5 * time.Minute,
		CheckOrigin:      SameOriginCheck,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.PingInterval <= 0 || out.PingInterval >= out.ReadTimeout {
		out.PingInterval = out.ReadTimeout / 2
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = d.SendBuffer
	}
	if out.Rate <= 0 {
		out.Rate = d.Rate
	}
	if out.Burst <= 0 {
		out.Burst = d.Burst
	}
	if out.ResumeWindow <= 0 {
		out.ResumeWindow = d.ResumeWindow
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = SameOriginCheck
	}
	return &out
}

// SameOriginCheck accepts upgrade requests whose Origin host matches the
// request host, and requests without an Origin header.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return u.Host == r.Host
}
