package render

import (
	"fmt"
	"html/template"

	"github.com/vango-dev/isorender/pkg/router"
)

// Chain renders a route chain leaf first, handing each level's output to
// its parent as children.
func Chain(rc *router.RenderContext, chain []*router.Descriptor) (template.HTML, error) {
	var children template.HTML
	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]
		if d.Component == nil {
			continue
		}
		out, err := d.Component.Render(rc, children)
		if err != nil {
			return "", fmt.Errorf("render: %s: %w", describe(d), err)
		}
		children = out
	}
	return children, nil
}

// Components returns the components of chain in order, for meta collection.
func Components(chain []*router.Descriptor) []any {
	out := make([]any, 0, len(chain))
	for _, d := range chain {
		if d.Component != nil {
			out = append(out, d.Component)
		}
	}
	return out
}

func describe(d *router.Descriptor) string {
	if d.Name != "" {
		return d.Name
	}
	if d.Pattern != "" {
		return d.Pattern
	}
	return "not-found"
}
