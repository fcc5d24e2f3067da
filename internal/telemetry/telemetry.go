// Package telemetry records spans and metrics around schema inference.
// Without configured providers the global no-op providers are used.
package telemetry

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcncl/schemagen/internal/errors"
)

const (
	instrumentationName    = "github.com/mcncl/schemagen"
	instrumentationVersion = "0.1.0"
)

// Option configures an Instrumentation.
type Option func(*telemetryConfig)

type telemetryConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *telemetryConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *telemetryConfig) {
		c.meterProvider = mp
	}
}

// WithServiceName sets the service name attached to spans and metrics.
func WithServiceName(name string) Option {
	return func(c *telemetryConfig) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// Instrumentation wraps document inference in a span and records document
// counts, inference latency and failures.
type Instrumentation struct {
	tracer      trace.Tracer
	serviceName string

	documents metric.Int64Counter
	duration  metric.Float64Histogram
	failures  metric.Int64Counter
}

// New creates an Instrumentation from the given options.
func New(opts ...Option) *Instrumentation {
	cfg := &telemetryConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "schemagen",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(
		instrumentationName,
		trace.WithInstrumentationVersion(instrumentationVersion),
	)
	meter := cfg.meterProvider.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion(instrumentationVersion),
	)

	// Instrument creation only fails on invalid names, which are constant here
	documents, _ := meter.Int64Counter(
		"schemagen.documents",
		metric.WithDescription("Number of JSON documents folded into a schema"),
		metric.WithUnit("{document}"),
	)
	duration, _ := meter.Float64Histogram(
		"schemagen.inference.duration",
		metric.WithDescription("Duration of schema inference per document"),
		metric.WithUnit("ms"),
	)
	failures, _ := meter.Int64Counter(
		"schemagen.inference.errors",
		metric.WithDescription("Number of documents whose schema could not be inferred"),
		metric.WithUnit("{error}"),
	)

	return &Instrumentation{
		tracer:      tracer,
		serviceName: cfg.serviceName,
		documents:   documents,
		duration:    duration,
		failures:    failures,
	}
}

// InferDocument runs fn inside a span describing one document of source.
func (in *Instrumentation) InferDocument(ctx context.Context, source string, index int, fn func(context.Context) error) error {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", in.serviceName),
		attribute.String("schemagen.source", source),
	}

	ctx, span := in.tracer.Start(ctx, "schemagen.infer_document",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(attrs, attribute.Int("schemagen.document_index", index))...),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	in.duration.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		failureAttrs := attrs
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			span.SetAttributes(attribute.String("schemagen.error_type", string(appErr.Type)))
			failureAttrs = append(failureAttrs, attribute.String("schemagen.error_type", string(appErr.Type)))
		}
		in.failures.Add(ctx, 1, metric.WithAttributes(failureAttrs...))
		return err
	}

	in.documents.Add(ctx, 1, metric.WithAttributes(attrs...))
	span.SetStatus(codes.Ok, "")
	return nil
}

// AddEvent adds an event to the span carried by ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
