package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientRejectsAbsoluteURLs(t *testing.T) {
	c := New(Config{})
	for _, u := range []string{"https://example.com/api", "//example.com/api", "api/items"} {
		if err := c.Get(context.Background(), u, nil); !errors.Is(err, ErrAbsoluteURL) {
			t.Errorf("Get(%q) error = %v, want ErrAbsoluteURL", u, err)
		}
	}
}

func TestClientForwardsCookiesAndToken(t *testing.T) {
	var gotAuth, gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if ck, err := r.Cookie("session"); err == nil {
			gotSession = ck.Value
		}
		json.NewEncoder(w).Encode(map[string]string{"name": "alice"})
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL: srv.URL,
		Token:   func() string { return "t0k3n" },
		Cookies: []*http.Cookie{{Name: "session", Value: "abc"}},
	})

	var out struct{ Name string }
	if err := c.Get(context.Background(), "/api/me", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Name != "alice" {
		t.Errorf("Name = %q, want alice", out.Name)
	}
	if gotAuth != "Bearer t0k3n" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotSession != "abc" {
		t.Errorf("session cookie = %q", gotSession)
	}
}

func TestClientRemembersSetCookies(t *testing.T) {
	calls := 0
	var secondSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "rotated"})
		} else if ck, err := r.Cookie("session"); err == nil {
			secondSession = ck.Value
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Cookies: []*http.Cookie{{Name: "session", Value: "old"}}})
	ctx := context.Background()
	if err := c.Post(ctx, "/api/login", map[string]string{"u": "a"}, nil); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if err := c.Get(ctx, "/api/me", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if secondSession != "rotated" {
		t.Errorf("second request session = %q, want rotated", secondSession)
	}
	if got := c.Cookie("session"); got != "rotated" {
		t.Errorf("Cookie(session) = %q, want rotated", got)
	}
	if set := c.SetCookies(); len(set) != 1 || set[0].Value != "rotated" {
		t.Errorf("SetCookies() = %v", set)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	err := c.Get(context.Background(), "/api/missing", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode() != http.StatusNotFound {
		t.Errorf("StatusCode() = %d", se.StatusCode())
	}
}

func TestIsRelative(t *testing.T) {
	tests := map[string]bool{
		"/api":          true,
		"//cdn.example": false,
		"http://x":      false,
		"relative/path": false,
		"/":             true,
	}
	for in, want := range tests {
		if got := IsRelative(in); got != want {
			t.Errorf("IsRelative(%q) = %v, want %v", in, got, want)
		}
	}
}
