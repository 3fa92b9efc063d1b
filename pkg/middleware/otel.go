package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "isorender"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "isorender").
	TracerName string

	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider

	// Server marks spans as server spans; otherwise they are internal.
	Server bool

	// Filter determines which navigations to trace.
	// If nil, all navigations are traced.
	Filter func(nav store.Navigate) bool

	// AttributeExtractor adds custom attributes to each navigation span.
	AttributeExtractor func(nav store.Navigate) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithServerSpans marks navigation spans as server spans.
func WithServerSpans(server bool) OTelOption {
	return func(c *OTelConfig) {
		c.Server = server
	}
}

// WithNavigationFilter sets a filter function for navigations.
func WithNavigationFilter(filter func(store.Navigate) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(store.Navigate) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry returns store middleware that traces navigations.
//
// Each Navigate intent runs inside a span. The span context is passed down
// the dispatch chain, so loaders and the HTTP requests they make inherit it,
// and the preload lifecycle actions dispatched during the navigation are
// recorded as span events. Redirects are recorded as an attribute, not as
// errors.
//
// The tracer comes from the global provider unless WithTracerProvider is
// given. Configure it before starting the server:
//
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) store.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	config.tracer = tp.Tracer(config.TracerName)

	kind := trace.SpanKindInternal
	if config.Server {
		kind = trace.SpanKindServer
	}

	return func(api store.API) func(next store.DispatchFunc) store.DispatchFunc {
		return func(next store.DispatchFunc) store.DispatchFunc {
			return func(ctx context.Context, a store.Action) error {
				nav, ok := a.(store.Navigate)
				if !ok {
					recordLifecycle(ctx, a)
					return next(ctx, a)
				}
				if config.Filter != nil && !config.Filter(nav) {
					return next(ctx, a)
				}

				attrs := []attribute.KeyValue{
					attribute.String("isorender.path", nav.Location.Pathname),
					attribute.String("isorender.action", string(nav.Location.Action)),
					attribute.Bool("isorender.redirect", nav.Redirect),
					attribute.Bool("isorender.skip_preload", nav.SkipPreload),
				}
				if config.AttributeExtractor != nil {
					attrs = append(attrs, config.AttributeExtractor(nav)...)
				}

				spanCtx, span := config.tracer.Start(ctx, formatSpanName(nav),
					trace.WithSpanKind(kind),
					trace.WithAttributes(attrs...),
				)
				defer span.End()

				err := next(spanCtx, a)

				st := api.State()
				if st.Router.Route != "" {
					span.SetAttributes(attribute.String("isorender.route", st.Router.Route))
				}
				if r, ok := preload.AsRedirect(err); ok {
					span.SetAttributes(attribute.String("isorender.redirect_to", r.Location.URL()))
					span.SetStatus(codes.Ok, "")
				} else if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				} else {
					span.SetStatus(codes.Ok, "")
				}
				return err
			}
		}
	}
}

// recordLifecycle adds preload lifecycle actions to the navigation span
// carried by ctx.
func recordLifecycle(ctx context.Context, a store.Action) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	switch a := a.(type) {
	case store.PreloadStarted, store.PreloadFinished:
		span.AddEvent(a.Type())
	case store.PreloadFailed:
		span.AddEvent(a.Type())
		if a.Err != nil {
			span.RecordError(a.Err)
		}
	case store.Commit:
		span.AddEvent(a.Type(), trace.WithAttributes(
			attribute.String("isorender.location", a.Location.URL()),
			attribute.Bool("isorender.instant", a.Instant),
		))
	}
}

func formatSpanName(nav store.Navigate) string {
	path := nav.Location.Pathname
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("isorender navigate %s", path)
}
