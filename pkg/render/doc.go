// Package render assembles server-rendered HTML documents.
//
// A page is produced in two parts. Chain renders the matched route chain
// (page inside its layouts) to HTML. WriteDocument then wraps that content
// with the head (meta tags in a fixed order, stylesheets), the serialized
// store state the client resumes from, and the entry scripts:
//
//	content, err := render.Chain(rc, match.Chain)
//	err = render.WriteDocument(w, render.Document{
//	    Meta:    meta.Collect(defaults, st, render.Components(match.Chain)...),
//	    Scripts: scripts,
//	    State:   st,
//	    Content: content,
//	})
//
// Errors are rendered with Error, which takes the HTTP status from errors
// implementing StatusCoder.
package render
