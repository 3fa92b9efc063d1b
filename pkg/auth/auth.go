// Package auth keeps the user's authentication token in a protected cookie
// and exposes it to loaders.
//
// The token is a JWT stored in a signed (and optionally encrypted) session
// cookie that scripts cannot read. On every server render the token is
// read back, verified, and handed to the preloader: as the bearer token of
// the loader HTTP client and as the "user" helper.
package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/sessions"
)

// DefaultCookieName names the authentication cookie when none is
// configured.
const DefaultCookieName = "isorender-auth"

const tokenKey = "token"

var (
	// ErrNoToken is returned when the request carries no token.
	ErrNoToken = errors.New("auth: no authentication token")

	// ErrInvalidToken is returned for tokens failing verification.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrSecureCookiesRequired is returned when secure cookies are enabled
	// and the request did not arrive over https.
	ErrSecureCookiesRequired = errors.New("auth: secure cookies require an https request")

	// ErrBadConfig is returned by New for invalid configuration.
	ErrBadConfig = errors.New("auth: invalid configuration")
)

// Config configures a Service.
type Config struct {
	CookieName string

	// AuthKey signs the cookie; EncryptKey, if set, encrypts it. Both are
	// hex encoded.
	AuthKey    string
	EncryptKey string

	// JWTSecret verifies HS256 tokens.
	JWTSecret string

	// SecureCookies marks the cookie Secure and refuses to set it over
	// plain http.
	SecureCookies bool

	// MaxAge of the cookie. Zero means 30 days.
	MaxAge time.Duration

	Proxies *Proxies
}

// Claims are the token claims made available to loaders.
type Claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the claims include role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Service reads and writes the authentication cookie.
type Service struct {
	cfg    Config
	store  *sessions.CookieStore
	parser *jwt.Parser
	secret []byte
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT secret is required", ErrBadConfig)
	}

	ak, err := hex.DecodeString(cfg.AuthKey)
	if err != nil || len(ak) == 0 {
		return nil, fmt.Errorf("%w: authentication key must be non-empty hex", ErrBadConfig)
	}
	keys := [][]byte{ak}
	if cfg.EncryptKey != "" {
		ek, err := hex.DecodeString(cfg.EncryptKey)
		if err != nil {
			return nil, fmt.Errorf("%w: encryption key is not valid hex: %s", ErrBadConfig, err)
		}
		switch len(ek) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: encryption key must be 16, 24 or 32 bytes", ErrBadConfig)
		}
		keys = append(keys, ek)
	}

	return &Service{
		cfg:    cfg,
		store:  sessions.NewCookieStore(keys...),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
		secret: []byte(cfg.JWTSecret),
	}, nil
}

// CookieName returns the name of the authentication cookie.
func (s *Service) CookieName() string { return s.cfg.CookieName }

func (s *Service) options(r *http.Request, maxAge int) (*sessions.Options, error) {
	secure := false
	if s.cfg.SecureCookies {
		if !IsSecure(r, s.cfg.Proxies) {
			return nil, ErrSecureCookiesRequired
		}
		secure = true
	}
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Token returns the token stored in the request cookie.
func (s *Service) Token(r *http.Request) (string, error) {
	session, err := s.store.Get(r, s.cfg.CookieName)
	if err != nil {
		// A cookie signed with rotated keys reads as absent.
		return "", ErrNoToken
	}
	token, _ := session.Values[tokenKey].(string)
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SetToken stores token in the authentication cookie.
func (s *Service) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	opts, err := s.options(r, int(s.cfg.MaxAge/time.Second))
	if err != nil {
		return err
	}
	session, _ := s.store.New(r, s.cfg.CookieName)
	session.Options = opts
	session.Values[tokenKey] = token
	return session.Save(r, w)
}

// Clear removes the authentication cookie.
func (s *Service) Clear(w http.ResponseWriter, r *http.Request) error {
	opts, err := s.options(r, -1)
	if err != nil {
		return err
	}
	session, _ := s.store.New(r, s.cfg.CookieName)
	session.Options = opts
	return session.Save(r, w)
}

// Issue signs claims.
func (s *Service) Issue(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString(s.secret)
}

// Parse verifies token and returns its claims.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	return claims, nil
}

// User returns the verified claims of the request's token.
func (s *Service) User(r *http.Request) (token string, claims *Claims, err error) {
	token, err = s.Token(r)
	if err != nil {
		return "", nil, err
	}
	claims, err = s.Parse(token)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}
