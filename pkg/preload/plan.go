package preload

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Step is one stage of a Plan. A step with several loaders runs them
// concurrently.
type Step struct {
	Loaders []Preloadable
}

// Parallel reports whether the step runs more than one loader.
func (s Step) Parallel() bool {
	return len(s.Loaders) > 1
}

// Plan is the ordered list of steps for one navigation.
type Plan []Step

// BuildPlan arranges the loaders of a matched chain (root first) into steps.
// Nil entries are descriptors without a loader. It returns nil when there is
// nothing to preload.
//
// Non-blocking loaders accumulate into a parallel group. A blocking loader
// closes an open group by joining it; otherwise it becomes a step of its own.
// A trailing group is flushed as the last step.
func BuildPlan(chain []Preloadable) Plan {
	var (
		plan  Plan
		group []Preloadable
	)
	for _, l := range chain {
		if l == nil {
			continue
		}
		if !l.PreloadOptions().Blocking {
			group = append(group, l)
			continue
		}
		if len(group) > 0 {
			plan = append(plan, Step{Loaders: append(group, l)})
			group = nil
			continue
		}
		plan = append(plan, Step{Loaders: []Preloadable{l}})
	}
	if len(group) > 0 {
		plan = append(plan, Step{Loaders: group})
	}
	if len(plan) == 0 {
		return nil
	}
	return plan
}

// String renders the plan with name giving each loader's label, e.g.
// "A ; {B, C, D}".
func (p Plan) String(name func(Preloadable) string) string {
	steps := make([]string, len(p))
	for i, s := range p {
		names := make([]string, len(s.Loaders))
		for j, l := range s.Loaders {
			names[j] = name(l)
		}
		if s.Parallel() {
			steps[i] = "{" + strings.Join(names, ", ") + "}"
		} else {
			steps[i] = names[0]
		}
	}
	return strings.Join(steps, " ; ")
}

func (s Step) run(ctx context.Context, pc *Context) error {
	if !s.Parallel() {
		return runLoader(ctx, s.Loaders[0], pc)
	}
	var g errgroup.Group
	for _, l := range s.Loaders {
		l := l
		g.Go(func() error { return runLoader(ctx, l, pc) })
	}
	return g.Wait()
}

func runLoader(ctx context.Context, l Preloadable, pc *Context) error {
	p, err := startLoader(ctx, l, pc)
	if err != nil {
		return err
	}
	return p.Wait(ctx)
}

// startLoader invokes the loader, turning a synchronous panic into an error
// so callers see one failure path.
func startLoader(ctx context.Context, l Preloadable, pc *Context) (p Pending, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, newPanicError(r)
		}
	}()
	p = l.Preload(ctx, pc)
	if p == nil {
		return nil, fmt.Errorf("%w (%T)", ErrLoaderContract, l)
	}
	return p, nil
}
