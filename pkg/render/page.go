package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/vango-dev/isorender/pkg/meta"
)

// StateVariable is the global the initial store state is assigned to.
const StateVariable = "__ISORENDER_STATE__"

// Document is a complete HTML page.
type Document struct {
	Meta meta.Meta

	// Scripts and Styles are asset URLs.
	Scripts []string
	Styles  []string

	// State is serialized into the page for the client to resume from.
	State any

	// Content is the rendered route chain. It is omitted when
	// ContentNotRendered is set.
	Content            template.HTML
	ContentNotRendered bool

	// SessionID identifies the live session created for the page.
	SessionID string

	// LiveURL is the websocket endpoint of the live transport.
	LiveURL string

	Head      template.HTML
	BodyStart template.HTML
	BodyEnd   template.HTML
}

// MetaMarkup renders the head tags of m.
func MetaMarkup(m meta.Meta) []string {
	tags := m.Tags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagMarkup(t))
	}
	return out
}

func tagMarkup(t meta.Tag) string {
	switch {
	case t.Title:
		return "<title>" + escapeHTML(t.Content) + "</title>"
	case t.Charset != "":
		return `<meta charset="` + escapeAttr(t.Charset) + `"/>`
	case t.Property != "":
		return `<meta property="` + escapeAttr(t.Property) + `" content="` + escapeAttr(t.Content) + `"/>`
	default:
		return `<meta name="` + escapeAttr(t.Name) + `" content="` + escapeAttr(t.Content) + `"/>`
	}
}

// WriteDocument writes d to w.
func WriteDocument(w io.Writer, d Document) error {
	bw := bufio.NewWriter(w)
	p := &printer{w: bw}

	p.printf("<!DOCTYPE html>\n")
	p.printf(`<html lang="%s">`+"\n", escapeAttr(meta.LanguageTag(d.Meta.Locale)))
	p.printf("<head>\n")
	for _, tag := range MetaMarkup(d.Meta) {
		p.printf("  %s\n", tag)
	}
	for _, href := range d.Styles {
		p.printf(`  <link rel="stylesheet" href="%s"/>`+"\n", escapeAttr(href))
	}
	if d.Head != "" {
		p.printf("%s\n", d.Head)
	}
	p.printf("</head>\n")

	p.printf("<body>\n")
	if d.BodyStart != "" {
		p.printf("%s\n", d.BodyStart)
	}
	p.printf(`<div id="root">`)
	if !d.ContentNotRendered {
		p.printf("%s", d.Content)
	}
	p.printf("</div>\n")

	if d.State != nil {
		// encoding/json escapes <, >, & and the JS line separators.
		data, err := json.Marshal(d.State)
		if err != nil {
			return fmt.Errorf("render: encoding state: %w", err)
		}
		p.printf("<script>window.%s=%s;</script>\n", StateVariable, data)
	}
	if d.SessionID != "" || d.LiveURL != "" {
		p.printf(`<script>window.__ISORENDER_LIVE__={"session":"%s","url":"%s"};</script>`+"\n",
			escapeAttr(d.SessionID), escapeAttr(d.LiveURL))
	}
	for _, src := range d.Scripts {
		p.printf(`<script src="%s" defer></script>`+"\n", escapeAttr(src))
	}
	if d.BodyEnd != "" {
		p.printf("%s\n", d.BodyEnd)
	}
	p.printf("</body>\n</html>\n")

	if p.err != nil {
		return p.err
	}
	return bw.Flush()
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
