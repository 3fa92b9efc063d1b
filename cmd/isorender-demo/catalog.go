package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vango-dev/isorender/pkg/auth"
	"github.com/vango-dev/isorender/pkg/meta"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/store"
)

// apiLatency simulates the round trip to a backing API.
const apiLatency = 40 * time.Millisecond

type product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Category string `json:"category"`
}

var products = map[string]product{
	"kettle":  {ID: "kettle", Name: "Kettle", Price: 39, Category: "kitchen"},
	"toaster": {ID: "toaster", Name: "Toaster", Price: 29, Category: "kitchen"},
	"lamp":    {ID: "lamp", Name: "Desk lamp", Price: 45, Category: "office"},
	"chair":   {ID: "chair", Name: "Office chair", Price: 189, Category: "office"},
}

var errUnauthorized = &statusError{code: http.StatusUnauthorized, msg: "sign in to see your account"}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.code }

// wait simulates API latency and honours cancellation by a newer
// navigation.
func wait(ctx context.Context) error {
	select {
	case <-time.After(apiLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loadCategories(ctx context.Context, pc *preload.Context) error {
	if err := wait(ctx); err != nil {
		return err
	}
	seen := make(map[string]bool)
	var cats []string
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			cats = append(cats, p.Category)
		}
	}
	sort.Strings(cats)
	return pc.Dispatch(ctx, store.Custom{Name: "categories", Payload: cats})
}

func loadProducts(ctx context.Context, pc *preload.Context) error {
	if err := wait(ctx); err != nil {
		return err
	}
	category := pc.Location.Query().Get("category")
	var list []product
	for _, p := range products {
		if category == "" || p.Category == category {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return pc.Dispatch(ctx, store.Custom{Name: "products", Payload: list})
}

func loadProduct(ctx context.Context, pc *preload.Context) error {
	if err := wait(ctx); err != nil {
		return err
	}
	var params struct {
		ID string `param:"id"`
	}
	if err := router.DecodeParams(pc.Params, &params); err != nil {
		return err
	}
	p, ok := products[params.ID]
	if !ok {
		return &router.NotFoundError{Path: pc.Location.Pathname}
	}
	return pc.Dispatch(ctx, store.Custom{Name: "product", Payload: p})
}

func loadAccount(ctx context.Context, pc *preload.Context) error {
	user, _ := pc.Helper("user").(*auth.Claims)
	if user == nil {
		return errUnauthorized
	}
	return pc.Dispatch(ctx, store.Custom{Name: "account", Payload: user.Name})
}

// handleError sends unauthenticated visitors to the sign-in page.
func handleError(err error, ec preload.ErrorContext) error {
	if errors.Is(err, errUnauthorized) {
		return ec.Redirect("/login?next=" + url.QueryEscape(ec.URL))
	}
	return err
}

// replace stores the payload of the action named name.
func replace(name string) store.ReducerFunc {
	return func(current any, a store.Action) any {
		if c, ok := a.(store.Custom); ok && c.Name == name {
			return c.Payload
		}
		return current
	}
}

func shell(rc *router.RenderContext, children template.HTML) (template.HTML, error) {
	var nav strings.Builder
	if cats, ok := rc.Data("categories").([]string); ok {
		for _, c := range cats {
			fmt.Fprintf(&nav, ` <a href="/products?category=%s">%s</a>`,
				template.URLQueryEscaper(c), template.HTMLEscapeString(c))
		}
	}
	return template.HTML(`<header><a href="/">Home</a> <a href="/products">All</a>` +
		nav.String() + ` <a href="/account">Account</a></header><main>`) + children + "</main>", nil
}

func home(*router.RenderContext, template.HTML) (template.HTML, error) {
	return "<h1>Welcome</h1><p>Pick a category above.</p>", nil
}

func productList(rc *router.RenderContext, _ template.HTML) (template.HTML, error) {
	list, _ := rc.Data("products").([]product)
	var b strings.Builder
	b.WriteString("<h1>Products</h1><ul>")
	for _, p := range list {
		fmt.Fprintf(&b, `<li><a href="/products/%s">%s</a> $%d</li>`,
			template.URLQueryEscaper(p.ID), template.HTMLEscapeString(p.Name), p.Price)
	}
	b.WriteString("</ul>")
	return template.HTML(b.String()), nil
}

// productView renders a product and titles the page after it.
type productView struct{}

func (productView) Meta(st store.State) meta.Meta {
	if p, ok := st.Data["product"].(product); ok {
		return meta.Meta{Title: p.Name, Description: fmt.Sprintf("%s for $%d", p.Name, p.Price)}
	}
	return meta.Meta{}
}

func (productView) Render(rc *router.RenderContext, children template.HTML) (template.HTML, error) {
	return productPage(rc, children)
}

func productPage(rc *router.RenderContext, _ template.HTML) (template.HTML, error) {
	p, ok := rc.Data("product").(product)
	if !ok {
		return "", fmt.Errorf("product %q was not preloaded", rc.Params["id"])
	}
	return template.HTML(fmt.Sprintf("<h1>%s</h1><p>$%d</p>",
		template.HTMLEscapeString(p.Name), p.Price)), nil
}

func account(rc *router.RenderContext, _ template.HTML) (template.HTML, error) {
	name, _ := rc.Data("account").(string)
	return template.HTML("<h1>Hello, " + template.HTMLEscapeString(name) + "</h1>"), nil
}

func login(rc *router.RenderContext, _ template.HTML) (template.HTML, error) {
	return template.HTML(`<h1>Sign in</h1><p>Continue to ` +
		template.HTMLEscapeString(rc.Location.Query().Get("next")) + `</p>`), nil
}

func notFound(rc *router.RenderContext, _ template.HTML) (template.HTML, error) {
	return template.HTML("<h1>Not found</h1><p>" + template.HTMLEscapeString(rc.Location.Pathname) + "</p>"), nil
}
