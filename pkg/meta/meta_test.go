package meta

import (
	"reflect"
	"testing"

	"github.com/vango-dev/isorender/pkg/store"
)

func TestTagsOrder(t *testing.T) {
	m := Meta{
		Charset:     "utf-8",
		Title:       "Test",
		Description: "Testing metadata",
		SiteName:    "Testing",
		Locale:      "ru",
		LocaleOther: []string{"en", "fr"},
		Viewport:    "width=device-width, initial-scale=1",
		Keywords:    "react, redux, webpack",
		Author:      "@catamphetamine",
		Custom:      map[string]string{"twitter:card": "summary", "robots": "noindex"},
	}

	want := []Tag{
		{Charset: "utf-8"},
		{Title: true, Content: "Test"},
		{Property: "og:title", Content: "Test"},
		{Name: "description", Content: "Testing metadata"},
		{Property: "og:description", Content: "Testing metadata"},
		{Property: "og:site_name", Content: "Testing"},
		{Property: "og:locale", Content: "ru"},
		{Property: "og:locale:alternate", Content: "en"},
		{Property: "og:locale:alternate", Content: "fr"},
		{Name: "viewport", Content: "width=device-width, initial-scale=1"},
		{Name: "keywords", Content: "react, redux, webpack"},
		{Name: "author", Content: "@catamphetamine"},
		{Name: "robots", Content: "noindex"},
		{Property: "twitter:card", Content: "summary"},
	}

	if got := m.Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestTagsDefaults(t *testing.T) {
	want := []Tag{{Charset: "utf-8"}, {Title: true}}
	if got := (Meta{}).Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %+v, want %+v", got, want)
	}
}

func TestMerge(t *testing.T) {
	base := Meta{Title: "Site", SiteName: "Site", LocaleOther: []string{"en"}, Custom: map[string]string{"a": "1"}}
	got := Merge(base,
		Meta{Title: "Users"},
		Meta{Description: "A user", LocaleOther: []string{"fr"}, Custom: map[string]string{"b": "2"}},
	)

	if got.Title != "Users" || got.SiteName != "Site" || got.Description != "A user" {
		t.Errorf("Merge() = %+v", got)
	}
	if !reflect.DeepEqual(got.LocaleOther, []string{"fr"}) {
		t.Errorf("LocaleOther = %v", got.LocaleOther)
	}
	if got.Custom["a"] != "1" || got.Custom["b"] != "2" {
		t.Errorf("Custom = %v", got.Custom)
	}
	if _, ok := base.Custom["b"]; ok {
		t.Error("Merge must not modify base")
	}
}

type titled string

func (t titled) Meta(store.State) Meta { return Meta{Title: string(t)} }

type userPage struct{}

func (userPage) Meta(st store.State) Meta {
	return Meta{Title: "User " + st.Router.Params["id"]}
}

func TestCollect(t *testing.T) {
	st := store.State{Router: store.RouterState{Params: map[string]string{"id": "7"}}}
	got := Collect(Meta{SiteName: "Demo"}, st, titled("Layout"), struct{}{}, userPage{})
	if got.Title != "User 7" || got.SiteName != "Demo" {
		t.Errorf("Collect() = %+v", got)
	}
}

func TestLanguageTag(t *testing.T) {
	tests := map[string]string{
		"":      "en",
		"ru":    "ru",
		"en_US": "en-US",
		"pt-BR": "pt-BR",
	}
	for in, want := range tests {
		if got := LanguageTag(in); got != want {
			t.Errorf("LanguageTag(%q) = %q, want %q", in, got, want)
		}
	}
}
