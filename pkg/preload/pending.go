package preload

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Pending is an in-flight loader result.
type Pending interface {
	// Wait blocks until the work settles or ctx is done.
	Wait(ctx context.Context) error
}

type future struct {
	done chan struct{}
	err  error
}

func (f *future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go starts fn in a new goroutine and returns its Pending result.
// A panic inside fn settles the result with a *PanicError.
func Go(ctx context.Context, fn func(ctx context.Context) error) Pending {
	f := &future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = newPanicError(r)
			}
		}()
		f.err = fn(ctx)
	}()
	return f
}

// Done returns an already settled Pending.
func Done(err error) Pending {
	f := &future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// All joins several Pending values. Wait returns after all of them settled,
// with the first error observed. A nil member is a loader contract violation.
func All(ps ...Pending) Pending {
	return all(ps)
}

type all []Pending

func (a all) Wait(ctx context.Context) error {
	var g errgroup.Group
	for i, p := range a {
		if p == nil {
			return fmt.Errorf("%w: element %d of All is nil", ErrLoaderContract, i)
		}
		p := p
		g.Go(func() error { return p.Wait(ctx) })
	}
	return g.Wait()
}

// PanicError is a recovered loader panic.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("preload: loader panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
