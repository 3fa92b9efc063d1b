// Package preload loads the data a page needs before navigating to it.
//
// Route descriptors carry an optional Preloadable. When a navigation intent
// (store.Navigate) reaches the Preloader middleware, the target location is
// matched, the loaders of the matched chain are arranged into a Plan and the
// plan is executed. Only after every loader settled successfully is the
// navigation committed.
//
// # Plans
//
// Loaders are blocking by default and run one after another, root first.
// Consecutive non-blocking loaders form a parallel group; the first blocking
// loader that follows such a group joins it:
//
//	[A, B(nb), C(nb), D]  ->  A ; {B, C, D}
//	[A(nb), B, C(nb)]     ->  {A, B} ; C
//
// # Sessions
//
// Each navigation that has something to preload owns a Session. Starting a
// new session cancels the previous one; a cancelled session never dispatches
// lifecycle actions again and never commits. Loader code of a cancelled
// session keeps running to completion: cancellation suppresses effects, it
// does not interrupt work.
//
// # Environments
//
// On the server (WithServer(true)) redirects unwind to the render entry point
// as *RedirectError, commits are skipped and an error handler must either
// redirect or return an error. On the client (a live session) redirects are
// dispatched as new navigation intents and unhandled failures are logged.
package preload
