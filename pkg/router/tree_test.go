package router

import (
	"reflect"
	"testing"
)

func page(pattern string) *Descriptor { return &Descriptor{Pattern: pattern} }

func TestEnsureStaticReusesSegments(t *testing.T) {
	root := newSegmentNode("")

	users := root.ensureStatic("users")
	if users.label != "users" {
		t.Errorf("label = %q", users.label)
	}
	if again := root.ensureStatic("users"); again != users {
		t.Error("second ensureStatic created a new node")
	}
	if n := len(root.static); n != 1 {
		t.Errorf("root has %d static children, want 1", n)
	}
}

func TestInsertDynamicSegments(t *testing.T) {
	root := newSegmentNode("")

	node := root.insert("/users/:id:int")
	if !node.isParam || node.name != "id" || node.constraint != "int" {
		t.Errorf("param node = %+v", node)
	}

	node = root.insert("/files/*path")
	if !node.isWildcard || node.name != "path" {
		t.Errorf("catch-all node = %+v", node)
	}

	if root.insert("/users/:id") != root.insert("/users/:other") {
		t.Error("a level has a single parameter child")
	}
}

func TestMatch(t *testing.T) {
	root := newSegmentNode("")
	root.insert("/users/list").page = page("/users/list")
	root.insert("/users/:id:int").page = page("/users/:id:int")
	root.insert("/files/*path").page = page("/files/*path")

	tests := []struct {
		path       string
		wantMatch  bool
		wantParams map[string]string
	}{
		{"/users/list", true, map[string]string{}},
		{"/users/42", true, map[string]string{"id": "42"}},
		{"/users/abc", false, nil},
		{"/users", false, nil},
		{"/users/list/extra", false, nil},
		{"/files/a/b/c", true, map[string]string{"path": "a/b/c"}},
		{"/files", true, map[string]string{"path": ""}},
		{"", false, nil},
	}

	for _, tt := range tests {
		params := make(map[string]string)
		_, _, ok := root.match(splitPath(tt.path), params, nil)
		if ok != tt.wantMatch {
			t.Errorf("match(%q) = %v, want %v", tt.path, ok, tt.wantMatch)
			continue
		}
		for k, v := range tt.wantParams {
			if params[k] != v {
				t.Errorf("match(%q) params[%s] = %q, want %q", tt.path, k, params[k], v)
			}
		}
	}
}

func TestMatchBacktracks(t *testing.T) {
	root := newSegmentNode("")
	root.insert("/a/b/c").page = page("/a/b/c")
	root.insert("/a/:x/d").page = page("/a/:x/d")

	params := make(map[string]string)
	node, _, ok := root.match(splitPath("/a/b/d"), params, nil)
	if !ok {
		t.Fatal("expected match")
	}
	if node.page.Pattern != "/a/:x/d" {
		t.Errorf("pattern = %q", node.page.Pattern)
	}
	if params["x"] != "b" {
		t.Errorf("params[x] = %q, want %q", params["x"], "b")
	}
}

func TestMatchCollectsLayouts(t *testing.T) {
	root := newSegmentNode("")
	root.layout = page("/")
	root.insert("/users").layout = page("/users")
	root.insert("/users/list").page = page("/users/list")
	root.insert("/other").layout = page("/other")

	_, layouts, ok := root.match(splitPath("/users/list"), map[string]string{}, nil)
	if !ok {
		t.Fatal("expected match")
	}
	if len(layouts) != 2 || layouts[0].Pattern != "/" || layouts[1].Pattern != "/users" {
		t.Errorf("layouts = %v", layouts)
	}
}

func TestSplitPath(t *testing.T) {
	for path, want := range map[string][]string{
		"":            nil,
		"/":           nil,
		"/users":      {"users"},
		"/users/list": {"users", "list"},
		"/a/b/c/":     {"a", "b", "c"},
	} {
		if got := splitPath(path); !reflect.DeepEqual(got, want) {
			t.Errorf("splitPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseParamSegment(t *testing.T) {
	for seg, want := range map[string][2]string{
		":id":          {"id", "string"},
		":id:int":      {"id", "int"},
		":userId:uuid": {"userId", "uuid"},
	} {
		name, constraint := parseParamSegment(seg)
		if [2]string{name, constraint} != want {
			t.Errorf("parseParamSegment(%q) = (%q, %q), want %q", seg, name, constraint, want)
		}
	}
}

func TestInsertToleratesEmptySegments(t *testing.T) {
	root := newSegmentNode("")
	root.insert("/a//b").page = page("/a//b")
	if _, _, ok := root.match([]string{"a", "", "b"}, map[string]string{}, nil); !ok {
		t.Error("pattern with an empty segment should match the same segments")
	}
}
