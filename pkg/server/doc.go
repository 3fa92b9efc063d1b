// Package server is the HTTP entry point of server-side rendering.
//
// Every page request runs the same pipeline:
//
//  1. The request path is canonicalized; non-canonical paths get a 308.
//  2. A fresh store is created with a server-mode preloader as its last
//     middleware. The preloader receives an HTTP client that forwards the
//     request cookies and the bearer token from the authentication cookie.
//  3. A Navigate intent is dispatched. The preloader runs the loaders of the
//     matched route chain and blocks until they settle.
//  4. A *preload.RedirectError becomes a 302 to the basename-prefixed
//     target. Any other error renders the error page.
//  5. The navigation is committed to the store, the route chain is rendered
//     and the document is written with the route status. Cookies set by the
//     API during preloading are copied to the response.
//
// The router mounts, besides the page catch-all, the static base page, the
// Prometheus endpoint, a health check and the live transport.
//
//	srv := server.New(cfg, routes,
//	    server.WithAuth(authService),
//	    server.WithManifest(manifest),
//	)
//	err := srv.Run(ctx)
package server
