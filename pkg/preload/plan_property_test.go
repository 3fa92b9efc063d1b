//go:build property

package preload

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// chainFromFlags builds a chain where flags[i] selects blocking, and every
// third descriptor has no loader.
func chainFromFlags(flags []bool) []Preloadable {
	chain := make([]Preloadable, len(flags))
	for i, b := range flags {
		if i%3 == 2 {
			continue
		}
		chain[i] = &testLoader{name: string(rune('A' + i%26)), blocking: b}
	}
	return chain
}

func TestBuildPlanProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("preserves chain order and loses nothing", prop.ForAll(
		func(flags []bool) bool {
			chain := chainFromFlags(flags)
			var want []Preloadable
			for _, l := range chain {
				if l != nil {
					want = append(want, l)
				}
			}

			var got []Preloadable
			for _, step := range BuildPlan(chain) {
				got = append(got, step.Loaders...)
			}
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("nil only when there are no loaders", prop.ForAll(
		func(flags []bool) bool {
			chain := chainFromFlags(flags)
			hasLoader := false
			for _, l := range chain {
				if l != nil {
					hasLoader = true
				}
			}
			return (BuildPlan(chain) == nil) == !hasLoader
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("parallel steps hold at most one blocking loader, placed last", prop.ForAll(
		func(flags []bool) bool {
			for _, step := range BuildPlan(chainFromFlags(flags)) {
				if !step.Parallel() {
					continue
				}
				for i, l := range step.Loaders {
					if l.PreloadOptions().Blocking && i != len(step.Loaders)-1 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("building twice yields the same partitioning", prop.ForAll(
		func(flags []bool) bool {
			chain := chainFromFlags(flags)
			return BuildPlan(chain).String(loaderName) == BuildPlan(chain).String(loaderName)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
