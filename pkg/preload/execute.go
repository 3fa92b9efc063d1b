package preload

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	sessionActive int32 = iota
	sessionCancelled
	sessionSettled
)

// Session is one preload attempt for one navigation intent.
type Session struct {
	id      uint64
	started time.Time
	state   atomic.Int32
}

// NewSession returns an active session.
func NewSession(id uint64) *Session {
	return &Session{id: id, started: time.Now()}
}

// ID returns the session sequence number.
func (s *Session) ID() uint64 { return s.id }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.started }

// Cancel marks an active session cancelled. It reports whether this call
// performed the transition.
func (s *Session) Cancel() bool {
	return s.state.CompareAndSwap(sessionActive, sessionCancelled)
}

// Cancelled reports whether the session was superseded.
func (s *Session) Cancelled() bool {
	return s.state.Load() == sessionCancelled
}

// Active reports whether the session has neither settled nor been cancelled.
func (s *Session) Active() bool {
	return s.state.Load() == sessionActive
}

// settle marks an active session finished. It returns false when the
// session was cancelled first.
func (s *Session) settle() bool {
	return s.state.CompareAndSwap(sessionActive, sessionSettled)
}

// Execute runs plan step by step. A step starts only after every loader of
// the previous step settled successfully. The session is consulted after
// each step: once it is cancelled the remaining steps are abandoned and
// Execute returns nil. The first loader error is returned as is.
func Execute(ctx context.Context, plan Plan, s *Session, pc *Context) error {
	for _, step := range plan {
		if err := step.run(ctx, pc); err != nil {
			return err
		}
		if s.Cancelled() {
			return nil
		}
	}
	return nil
}
