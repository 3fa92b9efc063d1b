package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func init() {
	DisableColors()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{"config", "C003", "JWT secret is missing", CategoryConfig},
		{"cli", "X002", "Export failed", CategoryCLI},
		{"runtime", "R001", "Snapshot store unavailable", CategoryRuntime},
		{"unknown", "Z999", "Unknown error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New("C002"), "C002: Invalid server port"},
		{New("C002").WithKey("server.port"), "C002: server.port: Invalid server port"},
		{New("C001").Wrap(fmt.Errorf("bad yaml")), "C001: Configuration could not be read: bad yaml"},
		{Newf(CategoryCLI, "no %s", "routes"), "no routes"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsAndAs(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("startup: %w", New("R001").Wrap(cause))

	if !stderrors.Is(err, New("R001")) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New("R002")) {
		t.Error("errors.Is must not match another code")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}

	var e *Error
	if !stderrors.As(err, &e) || e.Code != "R001" {
		t.Errorf("errors.As = %v", e)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "X001") != nil {
		t.Error("FromError(nil) should be nil")
	}

	plain := stderrors.New("boom")
	e := FromError(plain, "X001")
	if e.Code != "X001" || e.Wrapped != plain {
		t.Errorf("FromError() = %+v", e)
	}

	coded := New("C008")
	if got := FromError(fmt.Errorf("wrapped: %w", coded), "X001"); got != coded {
		t.Errorf("FromError() = %v, want the coded error", got)
	}
}

func TestJoin(t *testing.T) {
	if Join() != nil || Join(nil, nil) != nil {
		t.Error("Join of nothing should be nil")
	}
	one := New("C002")
	if Join(nil, one) != error(one) {
		t.Error("Join of one error should return it")
	}
	both := Join(New("C002"), New("C012"))
	if !stderrors.Is(both, New("C002")) || !stderrors.Is(both, New("C012")) {
		t.Errorf("Join() = %v", both)
	}
}

func TestFormat(t *testing.T) {
	err := New("C003").
		WithKey("auth.jwt_secret").
		WithSuggestion("Set ISORENDER_AUTH_JWT_SECRET").
		Wrap(stderrors.New("empty"))

	out := err.Format()
	for _, want := range []string{
		"ERROR C003: JWT secret is missing",
		"  auth.jwt_secret",
		"Cause: empty",
		"Hint: Set ISORENDER_AUTH_JWT_SECRET",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("colors should be disabled")
	}
}

func TestFormatJSON(t *testing.T) {
	var got map[string]string
	if err := json.Unmarshal([]byte(New("C009").WithKey("snapshot.redis_url").FormatJSON()), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["code"] != "C009" || got["category"] != "config" || got["key"] != "snapshot.redis_url" {
		t.Errorf("FormatJSON() = %v", got)
	}
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, stderrors.Join(New("C002"), stderrors.New("plain failure")))

	out := buf.String()
	if !strings.Contains(out, "ERROR C002") || !strings.Contains(out, "ERROR: plain failure") {
		t.Errorf("Fprint() =\n%s", out)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line too long: %q", l)
		}
	}
	if len(lines) < 2 {
		t.Errorf("wrapText() = %v", lines)
	}
}

func TestRegistry(t *testing.T) {
	codes := Codes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("Codes() not sorted: %v", codes)
		}
	}
	for _, code := range codes {
		tmpl, _ := Lookup(code)
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("%s is incomplete: %+v", code, tmpl)
		}
	}

	Register("T001", Template{Category: CategoryRuntime, Message: "test"})
	if New("T001").Message != "test" {
		t.Error("registered code not found")
	}
}
