package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. It only serves a single
// server process; live connections that may reconnect to another instance
// need RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
	stop    chan struct{}
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) live(now time.Time) bool { return !now.After(e.expiresAt) }

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore, *time.Duration)

// WithCleanupInterval sets how often expired snapshots are evicted.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(_ *MemoryStore, interval *time.Duration) { *interval = d }
}

// NewMemoryStore creates an in-memory store and starts its eviction loop.
// Close stops the loop.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	interval := time.Minute
	for _, opt := range opts {
		opt(m, &interval)
	}
	go m.evictEvery(interval)
	return m
}

// update runs fn under the write lock of an open store.
func (m *MemoryStore) update(fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed{}
	}
	fn()
	return nil
}

func (m *MemoryStore) Save(_ context.Context, id string, data []byte, expiresAt time.Time) error {
	owned := append([]byte(nil), data...)
	return m.update(func() {
		m.entries[id] = memoryEntry{data: owned, expiresAt: expiresAt}
	})
}

// Load returns nil data for unknown and expired snapshots.
func (m *MemoryStore) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed{}
	}
	if e, ok := m.entries[id]; ok && e.live(m.now()) {
		return append([]byte(nil), e.data...), nil
	}
	return nil, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	return m.update(func() { delete(m.entries, id) })
}

func (m *MemoryStore) Touch(_ context.Context, id string, expiresAt time.Time) error {
	return m.update(func() {
		if e, ok := m.entries[id]; ok {
			e.expiresAt = expiresAt
			m.entries[id] = e
		}
	})
}

// Close stops the eviction loop and drops all snapshots. Closing twice is
// a no-op.
func (m *MemoryStore) Close() error {
	err := m.update(func() {
		m.closed = true
		m.entries = nil
		close(m.stop)
	})
	if _, already := err.(ErrStoreClosed); already {
		return nil
	}
	return err
}

// Len returns the number of stored snapshots, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) evictEvery(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	_ = m.update(func() {
		now := m.now()
		for id, e := range m.entries {
			if !e.live(now) {
				delete(m.entries, id)
			}
		}
	})
}
