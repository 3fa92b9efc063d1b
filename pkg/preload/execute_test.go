package preload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunsStepsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context, *Context) error {
		return func(context.Context, *Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	plan := BuildPlan(chainOf(
		blocking("A").with(record("A")),
		blocking("B").with(record("B")),
		blocking("C").with(record("C")),
	))
	require.NoError(t, Execute(context.Background(), plan, NewSession(1), &Context{}))
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestExecuteParallelStepWaitsForSlowest(t *testing.T) {
	release := make(chan struct{})
	yDone := make(chan struct{})

	x := nonBlocking("X").with(func(context.Context, *Context) error {
		<-release
		return nil
	})
	y := nonBlocking("Y").with(func(context.Context, *Context) error {
		close(yDone)
		return nil
	})

	plan := BuildPlan(chainOf(x, y))
	done := make(chan error, 1)
	go func() { done <- Execute(context.Background(), plan, NewSession(1), &Context{}) }()

	<-yDone
	select {
	case <-done:
		t.Fatal("step completed before its slowest loader settled")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
}

func TestExecuteParallelFailureFailsStep(t *testing.T) {
	boom := errors.New("boom")
	next := blocking("next")
	plan := Plan{
		{Loaders: chainOf(
			nonBlocking("ok"),
			nonBlocking("bad").with(func(context.Context, *Context) error { return boom }),
		)},
		{Loaders: chainOf(next)},
	}

	err := Execute(context.Background(), plan, NewSession(1), &Context{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, next.calls.Load(), "later steps must not run")
}

func TestExecuteLoaderContract(t *testing.T) {
	plan := Plan{{Loaders: []Preloadable{nilLoader{}}}}
	err := Execute(context.Background(), plan, NewSession(1), &Context{})
	assert.ErrorIs(t, err, ErrLoaderContract)
}

func TestExecuteSynchronousPanic(t *testing.T) {
	plan := Plan{{Loaders: []Preloadable{panicLoader{}}}}
	err := Execute(context.Background(), plan, NewSession(1), &Context{})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "sync", pe.Value)
}

func TestExecuteAsynchronousPanic(t *testing.T) {
	l := blocking("A").with(func(context.Context, *Context) error { panic("async") })
	err := Execute(context.Background(), BuildPlan(chainOf(l)), NewSession(1), &Context{})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "async", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestExecuteStopsWhenCancelled(t *testing.T) {
	s := NewSession(1)
	first := blocking("A").with(func(context.Context, *Context) error {
		s.Cancel()
		return nil
	})
	second := blocking("B")

	err := Execute(context.Background(), BuildPlan(chainOf(first, second)), s, &Context{})
	assert.NoError(t, err, "a cancelled run is not a failure")
	assert.Zero(t, second.calls.Load())
}

func TestExecutePassesContext(t *testing.T) {
	var got *Context
	l := blocking("A").with(func(_ context.Context, pc *Context) error {
		got = pc
		return nil
	})
	pc := &Context{Params: map[string]string{"id": "7"}, Helpers: map[string]any{"locale": "en"}}
	require.NoError(t, Execute(context.Background(), BuildPlan(chainOf(l)), NewSession(1), pc))
	assert.Same(t, pc, got)
	assert.Equal(t, "en", got.Helper("locale"))
}

func TestAllWaitsForEveryMember(t *testing.T) {
	boom := errors.New("boom")
	err := All(Done(nil), Done(boom), Done(nil)).Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, All().Wait(context.Background()))
	assert.ErrorIs(t, All(Done(nil), nil).Wait(context.Background()), ErrLoaderContract)
}

func TestPendingRespectsContext(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	ctx, cancel := context.WithCancel(context.Background())
	p := Go(context.Background(), func(context.Context) error {
		<-stop
		return nil
	})
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestSessionTransitions(t *testing.T) {
	s := NewSession(3)
	assert.True(t, s.Active())
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel(), "second cancel is a no-op")
	assert.True(t, s.Cancelled())
	assert.False(t, s.settle(), "a cancelled session cannot settle")

	s2 := NewSession(4)
	assert.True(t, s2.settle())
	assert.False(t, s2.Cancel(), "a settled session cannot be cancelled")
	assert.Equal(t, uint64(4), s2.ID())
}

type nilLoader struct{}

func (nilLoader) Preload(context.Context, *Context) Pending { return nil }
func (nilLoader) PreloadOptions() Options                   { return Options{Blocking: true} }

type panicLoader struct{}

func (panicLoader) Preload(context.Context, *Context) Pending { panic("sync") }
func (panicLoader) PreloadOptions() Options                   { return Options{Blocking: true} }
