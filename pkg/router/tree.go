package router

import "strings"

// segmentNode is one path segment of the route table. A node has at most
// one parameter child and one wildcard child; static children are tried
// first when matching.
type segmentNode struct {
	label string

	isParam    bool
	isWildcard bool
	name       string // parameter name, without the ':' or '*'
	constraint string // "string", "int", "uint" or "uuid"

	page     *Descriptor
	layout   *Descriptor
	redirect string
	pattern  string // pattern registered at this node

	static   []*segmentNode
	param    *segmentNode
	wildcard *segmentNode
}

func newSegmentNode(label string) *segmentNode {
	return &segmentNode{label: label}
}

func (n *segmentNode) lookup(segment string) *segmentNode {
	for _, child := range n.static {
		if child.label == segment {
			return child
		}
	}
	return nil
}

func (n *segmentNode) ensureStatic(segment string) *segmentNode {
	if child := n.lookup(segment); child != nil {
		return child
	}
	child := newSegmentNode(segment)
	n.static = append(n.static, child)
	return child
}

func (n *segmentNode) ensureParam(name, constraint string) *segmentNode {
	if n.param != nil {
		return n.param
	}
	child := newSegmentNode("")
	child.isParam = true
	child.name = name
	child.constraint = constraint
	n.param = child
	return child
}

func (n *segmentNode) ensureWildcard(name string) *segmentNode {
	if n.wildcard != nil {
		return n.wildcard
	}
	child := newSegmentNode("")
	child.isWildcard = true
	child.name = name
	n.wildcard = child
	return child
}

// terminal reports whether a match may end at n. It is false for nil.
func (n *segmentNode) terminal() bool {
	return n != nil && (n.page != nil || n.redirect != "")
}

// insert returns the node registered for pattern, creating the missing
// segments. A wildcard ends the pattern.
func (n *segmentNode) insert(pattern string) *segmentNode {
	at := n
	for _, seg := range splitPath(pattern) {
		var kind byte
		if seg != "" {
			kind = seg[0]
		}
		switch kind {
		case '*':
			return at.ensureWildcard(seg[1:])
		case ':':
			at = at.ensureParam(parseParamSegment(seg))
		default:
			at = at.ensureStatic(seg)
		}
	}
	return at
}

// match resolves segs below n, preferring static segments over parameters
// and parameters over wildcards. Layouts on the matched branch are
// returned root first.
func (n *segmentNode) match(segs []string, params map[string]string, layouts []*Descriptor) (*segmentNode, []*Descriptor, bool) {
	if n.layout != nil {
		layouts = append(layouts, n.layout)
	}

	if len(segs) == 0 {
		switch {
		case n.terminal():
			return n, layouts, true
		case n.wildcard.terminal():
			params[n.wildcard.name] = ""
			return n.wildcard.enter(layouts)
		}
		return nil, nil, false
	}

	head, rest := segs[0], segs[1:]
	if next := n.lookup(head); next != nil {
		if found, ls, ok := next.match(rest, params, layouts); ok {
			return found, ls, true
		}
	}
	if p := n.param; p != nil && ValidateParam(head, p.constraint) == nil {
		params[p.name] = head
		if found, ls, ok := p.match(rest, params, layouts); ok {
			return found, ls, true
		}
		delete(params, p.name)
	}
	if n.wildcard.terminal() {
		params[n.wildcard.name] = strings.Join(segs, "/")
		return n.wildcard.enter(layouts)
	}
	return nil, nil, false
}

func (n *segmentNode) enter(layouts []*Descriptor) (*segmentNode, []*Descriptor, bool) {
	if n.layout != nil {
		layouts = append(layouts, n.layout)
	}
	return n, layouts, true
}

// layoutsFor collects the layouts along the static prefix of path. It is
// used for the not-found page, which keeps the layouts of the deepest
// existing static ancestor.
func (n *segmentNode) layoutsFor(segments []string) []*Descriptor {
	var layouts []*Descriptor
	current := n
	for {
		if current.layout != nil {
			layouts = append(layouts, current.layout)
		}
		if len(segments) == 0 {
			return layouts
		}
		next := current.lookup(segments[0])
		if next == nil {
			return layouts
		}
		current, segments = next, segments[1:]
	}
}

// walk visits every node depth first.
func (n *segmentNode) walk(fn func(*segmentNode)) {
	fn(n)
	for _, c := range n.static {
		c.walk(fn)
	}
	if n.param != nil {
		n.param.walk(fn)
	}
	if n.wildcard != nil {
		n.wildcard.walk(fn)
	}
}

func splitPath(path string) []string {
	if path = strings.Trim(path, "/"); path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// parseParamSegment splits ":id:int" into ("id", "int"). Without a
// constraint the type is "string".
func parseParamSegment(seg string) (name, constraint string) {
	name, constraint, ok := strings.Cut(seg[1:], ":")
	if !ok {
		constraint = "string"
	}
	return name, constraint
}
