// Package meta describes page metadata: the document title, description,
// OpenGraph properties and other head tags.
//
// Every component of a matched route chain may contribute metadata by
// implementing Provider. Contributions are merged root to leaf on top of
// the application defaults, so the page overrides its layouts.
package meta

import (
	"sort"
	"strings"

	"github.com/vango-dev/isorender/pkg/store"
)

// DefaultCharset is used when no charset is set.
const DefaultCharset = "utf-8"

// Meta holds page metadata. Empty fields are not rendered.
type Meta struct {
	Charset     string            `json:"charset,omitempty" mapstructure:"charset"`
	Title       string            `json:"title,omitempty" mapstructure:"title"`
	Description string            `json:"description,omitempty" mapstructure:"description"`
	SiteName    string            `json:"site_name,omitempty" mapstructure:"site_name"`
	Image       string            `json:"image,omitempty" mapstructure:"image"`
	Locale      string            `json:"locale,omitempty" mapstructure:"locale"`
	LocaleOther []string          `json:"locale_other,omitempty" mapstructure:"locale_other"`
	Viewport    string            `json:"viewport,omitempty" mapstructure:"viewport"`
	Keywords    string            `json:"keywords,omitempty" mapstructure:"keywords"`
	Author      string            `json:"author,omitempty" mapstructure:"author"`
	Custom      map[string]string `json:"custom,omitempty" mapstructure:"custom"`
}

// Provider is implemented by route components contributing metadata.
type Provider interface {
	Meta(st store.State) Meta
}

// Merge returns base overridden by each of overrides in turn. Non-empty
// fields win; custom tags are merged by name.
func Merge(base Meta, overrides ...Meta) Meta {
	out := base
	out.Custom = copyCustom(base.Custom)
	for _, o := range overrides {
		set(&out.Charset, o.Charset)
		set(&out.Title, o.Title)
		set(&out.Description, o.Description)
		set(&out.SiteName, o.SiteName)
		set(&out.Image, o.Image)
		set(&out.Locale, o.Locale)
		set(&out.Viewport, o.Viewport)
		set(&out.Keywords, o.Keywords)
		set(&out.Author, o.Author)
		if o.LocaleOther != nil {
			out.LocaleOther = append([]string(nil), o.LocaleOther...)
		}
		for k, v := range o.Custom {
			if out.Custom == nil {
				out.Custom = make(map[string]string, len(o.Custom))
			}
			out.Custom[k] = v
		}
	}
	return out
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func copyCustom(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Collect merges the metadata of every Provider in components, in order, on
// top of defaults. Components that are not providers are skipped.
func Collect(defaults Meta, st store.State, components ...any) Meta {
	out := defaults
	for _, c := range components {
		if p, ok := c.(Provider); ok {
			out = Merge(out, p.Meta(st))
		}
	}
	return out
}

// Tag is one element of the document head.
type Tag struct {
	// Title marks the <title> element; Content holds its text.
	Title bool

	Charset  string
	Name     string
	Property string
	Content  string
}

// Tags lists the head tags for m in document order: charset, title,
// og:title, description, og:description, og:site_name, og:image, og:locale,
// og:locale:alternate, viewport, keywords, author, then custom tags sorted
// by name. Charset and title are always present.
func (m Meta) Tags() []Tag {
	charset := m.Charset
	if charset == "" {
		charset = DefaultCharset
	}

	tags := []Tag{
		{Charset: charset},
		{Title: true, Content: m.Title},
	}
	add := func(name, property, content string) {
		if content != "" {
			tags = append(tags, Tag{Name: name, Property: property, Content: content})
		}
	}

	add("", "og:title", m.Title)
	add("description", "", m.Description)
	add("", "og:description", m.Description)
	add("", "og:site_name", m.SiteName)
	add("", "og:image", m.Image)
	add("", "og:locale", m.Locale)
	for _, l := range m.LocaleOther {
		add("", "og:locale:alternate", l)
	}
	add("viewport", "", m.Viewport)
	add("keywords", "", m.Keywords)
	add("author", "", m.Author)

	names := make([]string, 0, len(m.Custom))
	for k := range m.Custom {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if strings.Contains(k, ":") {
			add("", k, m.Custom[k])
		} else {
			add(k, "", m.Custom[k])
		}
	}
	return tags
}

// LanguageTag converts a locale such as "en_US" to the BCP 47 form used by
// the html lang attribute ("en-US"). An empty locale yields "en".
func LanguageTag(locale string) string {
	if locale == "" {
		return "en"
	}
	return strings.ReplaceAll(locale, "_", "-")
}
