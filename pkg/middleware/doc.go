// Package middleware provides observability store middleware.
//
// Both middlewares wrap the store dispatch chain and must be placed before
// the preloader middleware so they see Navigate intents:
//
//	st := store.New(store.State{}, store.WithMiddleware(
//	    middleware.OpenTelemetry(),
//	    middleware.Prometheus(),
//	    preloader.Middleware(),
//	))
//
// # OpenTelemetry
//
// Every navigation runs in a span carrying its path, history action and
// final route. Preload lifecycle actions and the commit are added as span
// events. The span context flows to loaders, so outgoing HTTP requests made
// by loaders join the trace.
//
// # Prometheus
//
// Navigation counts and durations, preload session counts and durations,
// and live transport counters. Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
