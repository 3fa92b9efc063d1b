// Package assets resolves the javascript and stylesheet URLs included on
// server-rendered pages.
//
// The bundler writes a manifest listing the output of every entry:
//
//	{
//	  "javascript": { "main": "/assets/main.3f9a1c.js" },
//	  "styles":     { "main": "/assets/main.8d2e4b.css" },
//	  "entries":    ["main"]
//	}
//
// "entries" selects which entries a page includes. When it is missing it
// defaults to ["main"], provided the manifest has a "main" javascript.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// DefaultEntry is the entry used when a manifest lists no entries.
const DefaultEntry = "main"

// ErrNoEntries is returned when a manifest has no entries and no default
// "main" javascript.
var ErrNoEntries = errors.New(`assets: "entries" is required when there is no "main" javascript`)

// File is the on-disk manifest format.
type File struct {
	Javascript map[string]string `json:"javascript"`
	Styles     map[string]string `json:"styles"`
	Entries    []string          `json:"entries,omitempty"`
}

// Manifest holds the current asset URLs. It is safe for concurrent use and
// may be reloaded while serving.
type Manifest struct {
	mu       sync.RWMutex
	file     File
	override []string
}

// NewManifest creates a manifest from f.
func NewManifest(f File) *Manifest {
	return &Manifest{file: f}
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return NewManifest(f), nil
}

func readFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("assets: parsing %s: %w", path, err)
	}
	return f, nil
}

// Reload replaces the manifest contents with the file at path. On error the
// previous contents are kept.
func (m *Manifest) Reload(path string) error {
	f, err := readFile(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.file = f
	m.mu.Unlock()
	return nil
}

// SetEntries selects the page entries regardless of the manifest's own
// "entries". It survives reloads. Passing none restores the manifest's.
func (m *Manifest) SetEntries(entries ...string) {
	m.mu.Lock()
	m.override = append([]string(nil), entries...)
	m.mu.Unlock()
}

// Entries returns the entries included on every page.
func (m *Manifest) Entries() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries()
}

func (m *Manifest) entries() ([]string, error) {
	if len(m.override) > 0 {
		return append([]string(nil), m.override...), nil
	}
	if len(m.file.Entries) > 0 {
		return append([]string(nil), m.file.Entries...), nil
	}
	if _, ok := m.file.Javascript[DefaultEntry]; ok {
		return []string{DefaultEntry}, nil
	}
	return nil, ErrNoEntries
}

// Scripts returns the javascript URLs of the page entries in entry order.
func (m *Manifest) Scripts() ([]string, error) {
	return m.collect(func(f File) map[string]string { return f.Javascript })
}

// Styles returns the stylesheet URLs of the page entries in entry order.
// Entries without styles are skipped.
func (m *Manifest) Styles() ([]string, error) {
	return m.collect(func(f File) map[string]string { return f.Styles })
}

func (m *Manifest) collect(kind func(File) map[string]string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := m.entries()
	if err != nil {
		return nil, err
	}
	urls := kind(m.file)
	var out []string
	for _, e := range entries {
		if u, ok := urls[e]; ok && u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}
