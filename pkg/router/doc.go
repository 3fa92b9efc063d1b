// Package router holds the route table of an isorender application.
//
// Routes form a radix tree. Every level of the tree may carry a layout, and
// terminal nodes carry a page or a redirect. Looking up a path yields the
// route chain: the layouts from the root down followed by the page. Each
// level is a Descriptor whose Loader is attached when the table is built,
// so the chain doubles as the component chain handed to the preloader.
//
// # Patterns
//
//	/users            static
//	/users/:id        parameter
//	/users/:id:int    typed parameter (int, uint, uuid)
//	/files/*path      catch-all, may be empty
//
// # Usage
//
//	r := router.New()
//	r.Layout("/", shell)
//	r.Page("/users/:id", userPage, router.WithLoader(loadUser))
//	r.Redirect("/u/:id", "/users/:id")
//	r.NotFound(notFoundPage)
//
//	p := preload.New(r)
//
// Router implements preload.Matcher; the Payload of the returned match is
// the *MatchResult.
package router
