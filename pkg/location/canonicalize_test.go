package location

import (
	"errors"
	"testing"
)

func TestCanonicalizePath(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantPath    string
		wantQuery   string
		wantChanged bool
		wantErr     error
	}{
		{name: "root", input: "/", wantPath: "/"},
		{name: "empty", input: "", wantPath: "/", wantChanged: true},
		{name: "no leading slash", input: "about", wantPath: "/about", wantChanged: true},
		{name: "collapse slashes", input: "/blog//post", wantPath: "/blog/post", wantChanged: true},
		{name: "single dot", input: "/blog/./post", wantPath: "/blog/post", wantChanged: true},
		{name: "double dot", input: "/blog/posts/../other", wantPath: "/blog/other", wantChanged: true},
		{name: "double dot to root", input: "/blog/../", wantPath: "/", wantChanged: true},
		{name: "query preserved", input: "/projects/123?tab=details", wantPath: "/projects/123", wantQuery: "tab=details"},
		{name: "trailing slash with query", input: "/projects/123/?tab=details", wantPath: "/projects/123", wantQuery: "tab=details", wantChanged: true},
		{name: "query escapes not validated", input: "/projects?bad=%GG", wantPath: "/projects", wantQuery: "bad=%GG"},
		{name: "valid escape", input: "/files/a%20b", wantPath: "/files/a%20b"},
		{name: "backslash", input: "/a\\b", wantErr: ErrBackslashInPath},
		{name: "encoded nul", input: "/a%00b", wantErr: ErrNullByteInPath},
		{name: "bad escape", input: "/a%GG", wantErr: ErrInvalidPercentEscape},
		{name: "truncated escape", input: "/a%2", wantErr: ErrInvalidPercentEscape},
		{name: "escapes root", input: "/../etc/passwd", wantErr: ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizePath(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CanonicalizePath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalizePath(%q) unexpected error: %v", tt.input, err)
			}
			if got.Path != tt.wantPath || got.Query != tt.wantQuery || got.Changed != tt.wantChanged {
				t.Errorf("CanonicalizePath(%q) = %+v, want {Path:%s Query:%s Changed:%v}",
					tt.input, got, tt.wantPath, tt.wantQuery, tt.wantChanged)
			}
		})
	}
}

func TestValidateNavigationPath(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"/users/1", "/users/1", nil},
		{"/users//1/?x=1#top", "/users/1?x=1#top", nil},
		{"https://evil.example/", "", ErrInvalidPath},
		{"//evil.example/", "", ErrInvalidPath},
		{"users", "", ErrInvalidPath},
		{"/../x", "", ErrPathEscapesRoot},
	}
	for _, tt := range tests {
		got, err := ValidateNavigationPath(tt.input)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateNavigationPath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ValidateNavigationPath(%q) = (%q, %v), want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestDecodeSegment(t *testing.T) {
	if got, err := DecodeSegment("a%20b", false); err != nil || got != "a b" {
		t.Errorf("DecodeSegment() = (%q, %v)", got, err)
	}
	if _, err := DecodeSegment("a%2Fb", false); !errors.Is(err, ErrEncodedSlashInSegment) {
		t.Errorf("DecodeSegment(encoded slash) error = %v", err)
	}
	if got, err := DecodeSegment("a%2Fb", true); err != nil || got != "a/b" {
		t.Errorf("DecodeSegment(catch-all) = (%q, %v)", got, err)
	}
}
