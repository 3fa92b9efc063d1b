// Command isorender-demo is a small shop rendered with isorender.
//
// Every page preloads its data before it is shown: on the first request
// on the server, afterwards over the live connection.
//
//	isorender-demo serve --dev
//	isorender-demo export --dir public
//	isorender-demo routes
package main

import (
	"github.com/vango-dev/isorender"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/router"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func routes() *router.Router {
	r := router.New()

	// The shell's categories load next to each page's own data.
	r.Layout("/", router.ComponentFunc(shell),
		router.WithLoader(preload.Loader(loadCategories, preload.NonBlocking())))

	r.Page("/", router.ComponentFunc(home), router.WithName("home"))
	r.Page("/products", router.ComponentFunc(productList), router.WithName("products"),
		router.WithLoader(preload.Loader(loadProducts, preload.NonBlocking())))
	r.Page("/products/:id", productView{}, router.WithName("product"),
		router.WithLoader(preload.Loader(loadProduct)))
	r.Page("/account", router.ComponentFunc(account), router.WithName("account"),
		router.WithLoader(preload.Loader(loadAccount)))
	r.Page("/login", router.ComponentFunc(login), router.WithName("login"))
	r.Redirect("/shop", "/products")
	r.NotFound(router.ComponentFunc(notFound))
	return r
}

func main() {
	isorender.New(routes(),
		isorender.WithName("isorender-demo"),
		isorender.WithVersion(version, commit),
		isorender.WithErrorHandler(handleError),
		isorender.WithReducer("categories", replace("categories")),
		isorender.WithReducer("products", replace("products")),
		isorender.WithReducer("product", replace("product")),
		isorender.WithReducer("account", replace("account")),
	).Main()
}
