package tracing

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer is the subset of OpenTelemetry the services and HTTP layer use.
type Tracer interface {
	Start(ctx context.Context, spanName string) (context.Context, oteltrace.Span)
	StartSpanFromHeader(ctx context.Context, h http.Header, spanName string) (context.Context, oteltrace.Span)
	InjectHTTP(ctx context.Context, h http.Header)
	Shutdown(ctx context.Context) error
}

type tracer struct {
	tracer oteltrace.Tracer
	tp     *trace.TracerProvider
}

// NewTracer installs a global tracer provider exporting to exporter.
func NewTracer(serviceName string, exporter trace.SpanExporter) Tracer {
	tp := newTraceProvider(serviceName, exporter)

	return tracer{
		tracer: tp.Tracer(serviceName),
		tp:     tp,
	}
}

// NewStdoutTracer exports spans as JSON lines to w.
func NewStdoutTracer(serviceName string, w io.Writer) (Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return NewTracer(serviceName, exporter), nil
}

// NewOTLPTracer exports spans to an OTLP collector over plaintext gRPC.
func NewOTLPTracer(ctx context.Context, serviceName, endpoint string) (Tracer, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithReconnectionPeriod(5*time.Second),
		otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}
	return NewTracer(serviceName, exporter), nil
}

func (t tracer) Start(ctx context.Context, spanName string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, spanName)
}

func (t tracer) StartSpanFromHeader(ctx context.Context, h http.Header, spanName string) (context.Context, oteltrace.Span) {
	return t.Start(constructContextFromHeader(ctx, h), spanName)
}

func (t tracer) InjectHTTP(ctx context.Context, h http.Header) {
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(h))
}

func (t tracer) Shutdown(ctx context.Context) error {
	_ = t.tp.ForceFlush(ctx)

	return t.tp.Shutdown(ctx)
}

type noopTracer struct {
	tracer oteltrace.Tracer
}

// NewNoopTracer returns a Tracer whose spans record nothing.
func NewNoopTracer() Tracer {
	return noopTracer{tracer: noop.NewTracerProvider().Tracer("")}
}

func (t noopTracer) Start(ctx context.Context, spanName string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, spanName)
}

func (t noopTracer) StartSpanFromHeader(ctx context.Context, h http.Header, spanName string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(constructContextFromHeader(ctx, h), spanName)
}

func (t noopTracer) InjectHTTP(ctx context.Context, h http.Header) {}

func (t noopTracer) Shutdown(ctx context.Context) error {
	return nil
}

func constructContextFromHeader(ctx context.Context, h http.Header) context.Context {
	return propagation.TraceContext{}.Extract(ctx, propagation.HeaderCarrier(h))
}

func newTraceProvider(serviceName string, exporter trace.SpanExporter) *trace.TracerProvider {
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{}),
	)

	otel.SetTracerProvider(tp)

	return tp
}
