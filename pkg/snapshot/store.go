// Package snapshot persists live-session store snapshots so a reconnecting
// client can resume where it left off.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vango-dev/isorender/pkg/store"
)

// Store persists encoded snapshots keyed by live session ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data until expiresAt, replacing any previous snapshot.
	Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Load returns the snapshot, or nil and no error if it is missing or
	// expired.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Touch extends the expiration of an existing snapshot.
	Touch(ctx context.Context, id string, expiresAt time.Time) error

	// Close releases resources. Further calls return ErrStoreClosed.
	Close() error
}

// ErrStoreClosed is returned by operations on a closed store.
type ErrStoreClosed struct{}

func (ErrStoreClosed) Error() string { return "snapshot: store is closed" }

// Encode serializes a store state.
func Encode(st store.State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// Decode deserializes a store state. Custom data decodes into generic JSON
// values.
func Decode(data []byte) (store.State, error) {
	var st store.State
	if err := json.Unmarshal(data, &st); err != nil {
		return store.State{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return st, nil
}

// SaveState encodes st and saves it for ttl.
func SaveState(ctx context.Context, s Store, id string, st store.State, ttl time.Duration) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	return s.Save(ctx, id, data, time.Now().Add(ttl))
}

// LoadState loads and decodes a snapshot. ok is false when none exists.
func LoadState(ctx context.Context, s Store, id string) (st store.State, ok bool, err error) {
	data, err := s.Load(ctx, id)
	if err != nil || data == nil {
		return store.State{}, false, err
	}
	st, err = Decode(data)
	if err != nil {
		return store.State{}, false, err
	}
	return st, true, nil
}
