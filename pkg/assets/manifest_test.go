package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestManifestDefaultsToMain(t *testing.T) {
	m := NewManifest(File{
		Javascript: map[string]string{"main": "/main.js", "admin": "/admin.js"},
		Styles:     map[string]string{"main": "/main.css"},
	})

	entries, err := m.Entries()
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if !reflect.DeepEqual(entries, []string{"main"}) {
		t.Errorf("Entries() = %v, want [main]", entries)
	}

	scripts, _ := m.Scripts()
	if !reflect.DeepEqual(scripts, []string{"/main.js"}) {
		t.Errorf("Scripts() = %v", scripts)
	}
}

func TestManifestExplicitEntries(t *testing.T) {
	m := NewManifest(File{
		Javascript: map[string]string{"vendor": "/vendor.js", "app": "/app.js"},
		Styles:     map[string]string{"app": "/app.css"},
		Entries:    []string{"vendor", "app"},
	})

	scripts, err := m.Scripts()
	if err != nil {
		t.Fatalf("Scripts() error: %v", err)
	}
	if !reflect.DeepEqual(scripts, []string{"/vendor.js", "/app.js"}) {
		t.Errorf("Scripts() = %v", scripts)
	}

	styles, _ := m.Styles()
	if !reflect.DeepEqual(styles, []string{"/app.css"}) {
		t.Errorf("Styles() = %v", styles)
	}
}

func TestManifestRequiresEntries(t *testing.T) {
	m := NewManifest(File{Javascript: map[string]string{"app": "/app.js"}})
	if _, err := m.Scripts(); !errors.Is(err, ErrNoEntries) {
		t.Errorf("Scripts() error = %v, want ErrNoEntries", err)
	}
}

func TestManifestSetEntries(t *testing.T) {
	m := NewManifest(File{
		Javascript: map[string]string{"main": "/main.js", "admin": "/admin.js"},
	})
	m.SetEntries("admin")
	if scripts, _ := m.Scripts(); !reflect.DeepEqual(scripts, []string{"/admin.js"}) {
		t.Errorf("Scripts() = %v, want [/admin.js]", scripts)
	}

	m.SetEntries()
	if scripts, _ := m.Scripts(); !reflect.DeepEqual(scripts, []string{"/main.js"}) {
		t.Errorf("Scripts() after reset = %v", scripts)
	}
}

func writeManifest(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeManifest(t, path, `{"javascript":{"main":"/a.js"}}`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	writeManifest(t, path, `not json`)
	if err := m.Reload(path); err == nil {
		t.Error("Reload() of invalid JSON should fail")
	}
	if scripts, _ := m.Scripts(); !reflect.DeepEqual(scripts, []string{"/a.js"}) {
		t.Errorf("failed reload must keep contents, Scripts() = %v", scripts)
	}

	writeManifest(t, path, `{"javascript":{"main":"/b.js"}}`)
	if err := m.Reload(path); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if scripts, _ := m.Scripts(); !reflect.DeepEqual(scripts, []string{"/b.js"}) {
		t.Errorf("Scripts() = %v", scripts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeManifest(t, path, `{"javascript":{"main":"/a.js"}}`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 8)
	if err := Watch(ctx, m, path, nil, func(err error) {
		select {
		case reloaded <- err:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	writeManifest(t, path, `{"javascript":{"main":"/c.js"}}`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
			if scripts, _ := m.Scripts(); reflect.DeepEqual(scripts, []string{"/c.js"}) {
				return
			}
		case <-deadline:
			t.Fatal("manifest was not reloaded")
		}
	}
}
