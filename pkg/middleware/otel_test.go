package middleware

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingProvider struct {
	noop.TracerProvider
	spans []*recordingSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{p: p}
}

type recordingTracer struct {
	noop.Tracer
	p *recordingProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{name: name, kind: cfg.SpanKind(), attrs: cfg.Attributes()}
	t.p.spans = append(t.p.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type recordingSpan struct {
	noop.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	events []string
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordingSpan) IsRecording() bool { return true }
func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}
func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}
func (s *recordingSpan) SetStatus(c codes.Code, _ string) { s.status = c }
func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrs = append(s.attrs, kv...)
}
func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetryTracesClientNavigation(t *testing.T) {
	tp := &recordingProvider{}
	st := newTestStore(false, OpenTelemetry(
		WithTracerProvider(tp),
		WithAttributeExtractor(func(store.Navigate) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	))

	if err := st.Dispatch(context.Background(), store.Navigate{Location: location.Location{Pathname: "/"}}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if len(tp.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.spans))
	}
	span := tp.spans[0]
	if span.name != "isorender navigate /" || span.kind != trace.SpanKindInternal || !span.ended {
		t.Errorf("span = %+v", span)
	}
	wantEvents := []string{"preload/started", "preload/finished", "history/push"}
	if !reflect.DeepEqual(span.events, wantEvents) {
		t.Errorf("events = %v, want %v", span.events, wantEvents)
	}
	if span.status != codes.Ok {
		t.Errorf("status = %v, want Ok", span.status)
	}
	if v, ok := span.attr("isorender.route"); !ok || v.AsString() != "/" {
		t.Errorf("route attribute = %v, %v", v, ok)
	}
	if v, ok := span.attr("test.attr"); !ok || v.AsString() != "ok" {
		t.Errorf("custom attribute = %v, %v", v, ok)
	}
}

func TestOpenTelemetryRecordsServerOutcomes(t *testing.T) {
	tp := &recordingProvider{}
	st := newTestStore(true, OpenTelemetry(WithTracerProvider(tp), WithServerSpans(true)))
	ctx := context.Background()

	err := st.Dispatch(ctx, store.Navigate{Location: location.Location{Pathname: "/fail"}})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Dispatch() error = %v, want boom", err)
	}
	failed := tp.spans[0]
	if failed.kind != trace.SpanKindServer || failed.status != codes.Error {
		t.Errorf("failed span kind=%v status=%v", failed.kind, failed.status)
	}
	if !reflect.DeepEqual(failed.events, []string{"preload/started", "preload/failed"}) {
		t.Errorf("events = %v", failed.events)
	}
	// Recorded once by the lifecycle event and once as the span result.
	if len(failed.errs) != 2 {
		t.Errorf("recorded errors = %v", failed.errs)
	}

	err = st.Dispatch(ctx, store.Navigate{Location: location.Location{Pathname: "/old"}})
	if _, ok := preload.AsRedirect(err); !ok {
		t.Fatalf("Dispatch() error = %v, want redirect", err)
	}
	redirected := tp.spans[1]
	if redirected.status != codes.Ok || len(redirected.errs) != 0 {
		t.Errorf("redirect must not be an error: %+v", redirected)
	}
	if v, ok := redirected.attr("isorender.redirect_to"); !ok || v.AsString() != "/" {
		t.Errorf("redirect_to = %v, %v", v, ok)
	}
}

func TestOpenTelemetryFilterSkipsTracing(t *testing.T) {
	tp := &recordingProvider{}
	st := newTestStore(false, OpenTelemetry(
		WithTracerProvider(tp),
		WithNavigationFilter(func(nav store.Navigate) bool { return nav.Location.Pathname != "/" }),
	))

	if err := st.Dispatch(context.Background(), store.Navigate{Location: location.Location{Pathname: "/"}}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(tp.spans) != 0 {
		t.Errorf("spans = %d, want 0", len(tp.spans))
	}
}

func TestOpenTelemetryWithGlobalProvider(t *testing.T) {
	st := newTestStore(false, OpenTelemetry(WithTracerName("test")))
	if err := st.Dispatch(context.Background(), store.Navigate{Location: location.Location{Pathname: "/"}}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if got := st.State().Router.Route; got != "/" {
		t.Errorf("route = %q", got)
	}
}
