package render

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/vango-dev/isorender/pkg/meta"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/router"
)

func TestMetaMarkup(t *testing.T) {
	got := MetaMarkup(meta.Meta{
		Charset:     "utf-8",
		Title:       "Test",
		Description: "Testing metadata",
		Locale:      "ru",
		LocaleOther: []string{"en", "fr"},
		Viewport:    "width=device-width, initial-scale=1",
		Keywords:    "react, redux, webpack",
		Author:      "@catamphetamine",
	})
	want := []string{
		`<meta charset="utf-8"/>`,
		`<title>Test</title>`,
		`<meta property="og:title" content="Test"/>`,
		`<meta name="description" content="Testing metadata"/>`,
		`<meta property="og:description" content="Testing metadata"/>`,
		`<meta property="og:locale" content="ru"/>`,
		`<meta property="og:locale:alternate" content="en"/>`,
		`<meta property="og:locale:alternate" content="fr"/>`,
		`<meta name="viewport" content="width=device-width, initial-scale=1"/>`,
		`<meta name="keywords" content="react, redux, webpack"/>`,
		`<meta name="author" content="@catamphetamine"/>`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MetaMarkup() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestMetaMarkupDefaults(t *testing.T) {
	want := []string{`<meta charset="utf-8"/>`, `<title></title>`}
	if got := MetaMarkup(meta.Meta{}); !reflect.DeepEqual(got, want) {
		t.Errorf("MetaMarkup() = %v, want %v", got, want)
	}
}

func TestMetaMarkupEscapes(t *testing.T) {
	got := MetaMarkup(meta.Meta{Title: `<script>"x"</script>`})
	if got[1] != "<title>&lt;script&gt;&quot;x&quot;&lt;/script&gt;</title>" {
		t.Errorf("title = %s", got[1])
	}
	if strings.Contains(got[2], "<script>") {
		t.Errorf("og:title not escaped: %s", got[2])
	}
}

func TestWriteDocument(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDocument(&buf, Document{
		Meta:      meta.Meta{Title: "Home", Locale: "en_US"},
		Scripts:   []string{"/main.js"},
		Styles:    []string{"/main.css"},
		State:     map[string]string{"greeting": "</script><b>"},
		Content:   template.HTML("<p>hello</p>"),
		SessionID: "abc",
		LiveURL:   "/_live",
	})
	if err != nil {
		t.Fatalf("WriteDocument() error: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		`<html lang="en-US">`,
		"<title>Home</title>",
		`<link rel="stylesheet" href="/main.css"/>`,
		`<div id="root"><p>hello</p></div>`,
		`<script src="/main.js" defer></script>`,
		`"session":"abc"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("document missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "</script><b>") {
		t.Error("state must be escaped inside the script element")
	}
	if !strings.Contains(html, `window.__ISORENDER_STATE__={"greeting":"\u003c/script\u003e\u003cb\u003e"};`) {
		t.Errorf("state script not found:\n%s", html)
	}
	if strings.Index(html, "</head>") > strings.Index(html, "<body>") {
		t.Error("head must precede body")
	}
}

func TestWriteDocumentBasePage(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDocument(&buf, Document{Content: "ignored", ContentNotRendered: true})
	if err != nil {
		t.Fatalf("WriteDocument() error: %v", err)
	}
	if !strings.Contains(buf.String(), `<div id="root"></div>`) {
		t.Errorf("base page should have an empty root:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), StateVariable) {
		t.Error("no state script without state")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteDocumentWriteError(t *testing.T) {
	big := template.HTML(strings.Repeat("x", 8192))
	if err := WriteDocument(failingWriter{}, Document{Content: big}); err == nil {
		t.Error("expected write error")
	}
}

func wrap(tag string) router.Component {
	return router.ComponentFunc(func(rc *router.RenderContext, children template.HTML) (template.HTML, error) {
		return template.HTML("<"+tag+">") + children + template.HTML("</"+tag+">"), nil
	})
}

func TestChain(t *testing.T) {
	chain := []*router.Descriptor{
		{Pattern: "/", Component: wrap("main")},
		{Pattern: "/users", Component: nil},
		{Pattern: "/users/:id", Component: router.ComponentFunc(func(rc *router.RenderContext, _ template.HTML) (template.HTML, error) {
			return template.HTML("user " + template.HTMLEscapeString(rc.Params["id"])), nil
		})},
	}
	rc := &router.RenderContext{Params: map[string]string{"id": "7"}}

	got, err := Chain(rc, chain)
	if err != nil {
		t.Fatalf("Chain() error: %v", err)
	}
	if got != "<main>user 7</main>" {
		t.Errorf("Chain() = %q", got)
	}
	if n := len(Components(chain)); n != 2 {
		t.Errorf("len(Components()) = %d, want 2", n)
	}
}

func TestChainError(t *testing.T) {
	boom := errors.New("boom")
	chain := []*router.Descriptor{
		{Pattern: "/", Component: wrap("main")},
		{Name: "broken", Component: router.ComponentFunc(func(*router.RenderContext, template.HTML) (template.HTML, error) {
			return "", boom
		})},
	}
	_, err := Chain(&router.RenderContext{}, chain)
	if !errors.Is(err, boom) {
		t.Fatalf("Chain() error = %v, want boom", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the component: %v", err)
	}
}

func TestErrorPage(t *testing.T) {
	notFound := &StatusError{Code: http.StatusNotFound, Err: errors.New("no such user")}

	prod := Error(notFound, false)
	if prod.Status != http.StatusNotFound || prod.Body != "no such user" || !strings.HasPrefix(prod.ContentType, "text/plain") {
		t.Errorf("production page = %+v", prod)
	}

	dev := Error(notFound, true)
	if !strings.HasPrefix(dev.ContentType, "text/html") || !strings.Contains(dev.Body, "no such user") {
		t.Errorf("development page = %+v", dev)
	}

	if got := Error(errors.New("x"), false).Status; got != http.StatusInternalServerError {
		t.Errorf("default status = %d", got)
	}
	if got := Error(&router.NotFoundError{Path: "/x"}, false).Status; got != http.StatusNotFound {
		t.Errorf("router not found status = %d", got)
	}
}

func TestErrorPageShowsPanicStack(t *testing.T) {
	pe := &preload.PanicError{Value: "kaboom", Stack: []byte("goroutine 1 [running]:\nmain.<lambda>()")}
	page := Error(pe, true)
	if !strings.Contains(page.Body, "goroutine 1 [running]") {
		t.Errorf("stack trace missing:\n%s", page.Body)
	}
	if strings.Contains(page.Body, "main.<lambda>") {
		t.Error("stack trace must be escaped")
	}
}

type customHTML struct{}

func (customHTML) Error() string { return "custom" }
func (customHTML) HTML() string  { return "<h1>custom</h1>" }

func TestErrorPageCustomHTML(t *testing.T) {
	if got := Error(customHTML{}, true).Body; got != "<h1>custom</h1>" {
		t.Errorf("Body = %q", got)
	}
}
