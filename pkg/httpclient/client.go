// Package httpclient is the HTTP helper handed to loaders.
//
// During server-side rendering it forwards the incoming request's cookies to
// the API, remembers cookies the API sets (so later requests and the final
// response see them) and resolves relative URLs against a base URL. In both
// environments it only talks to relative URLs by default, which keeps the
// bearer token from leaking to third parties.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ErrAbsoluteURL is returned for absolute or protocol-relative URLs when they
// are not allowed.
var ErrAbsoluteURL = errors.New("httpclient: absolute URLs are not allowed, use a relative URL such as /api/item/3")

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to relative URLs, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// AllowAbsoluteURLs permits requests to other hosts. Cookies and the
	// bearer token are never sent to them.
	AllowAbsoluteURLs bool

	// Headers are added to every request.
	Headers http.Header

	// AuthHeader is the header carrying the token. Default "Authorization".
	AuthHeader string

	// Token returns the access token; "" sends no auth header.
	Token func() string

	// Cookies are forwarded with every relative request (server side).
	Cookies []*http.Cookie

	// HTTPClient performs requests. Default http.DefaultClient.
	HTTPClient *http.Client
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s %s: status %d", e.Method, e.URL, e.Status)
}

// StatusCode returns the response status, used to pick the error page status.
func (e *StatusError) StatusCode() int { return e.Status }

// Client performs JSON requests.
type Client struct {
	cfg Config

	mu         sync.Mutex
	setCookies []*http.Cookie
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}
}

// Get decodes the JSON response of GET path into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch sends body as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do performs a request.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	relative := IsRelative(path)
	if !relative && !c.cfg.AllowAbsoluteURLs {
		return fmt.Errorf("%w: %q", ErrAbsoluteURL, path)
	}

	url := path
	if relative {
		url = strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpclient: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	for k, vs := range c.cfg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if relative {
		if c.cfg.Token != nil {
			if token := c.cfg.Token(); token != "" {
				req.Header.Set(c.cfg.AuthHeader, "Bearer "+token)
			}
		}
		for _, ck := range c.requestCookies() {
			req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if relative {
		c.remember(resp.Cookies())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{Method: method, URL: path, Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// Cookie returns the current value of a cookie: one set by an earlier
// response wins over the forwarded request cookie.
func (c *Client) Cookie(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.setCookies) - 1; i >= 0; i-- {
		if c.setCookies[i].Name == name {
			return c.setCookies[i].Value
		}
	}
	for _, ck := range c.cfg.Cookies {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// SetCookies returns the cookies set by API responses, to be copied onto the
// page response.
func (c *Client) SetCookies() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*http.Cookie(nil), c.setCookies...)
}

func (c *Client) requestCookies() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()

	byName := make(map[string]int)
	var out []*http.Cookie
	for _, list := range [][]*http.Cookie{c.cfg.Cookies, c.setCookies} {
		for _, ck := range list {
			if i, ok := byName[ck.Name]; ok {
				out[i] = ck
				continue
			}
			byName[ck.Name] = len(out)
			out = append(out, ck)
		}
	}
	return out
}

func (c *Client) remember(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range cookies {
		replaced := false
		for i, existing := range c.setCookies {
			if existing.Name == ck.Name {
				c.setCookies[i] = ck
				replaced = true
				break
			}
		}
		if !replaced {
			c.setCookies = append(c.setCookies, ck)
		}
	}
}

// IsRelative reports whether path is a same-origin path ("/x", not "//x").
func IsRelative(path string) bool {
	return strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//")
}
