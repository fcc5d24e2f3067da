package telemetry

import (
	"context"
	stderrors "errors"
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to a structured logger.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"span", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
			"duration", span.EndTime().Sub(span.StartTime()),
			"status", span.Status().Code.String(),
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		e.logger.InfoContext(ctx, "telemetry span", attrs...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}

// NewLogging returns an Instrumentation backed by the OpenTelemetry SDK that
// reports spans to logger as they end. The returned shutdown function logs
// the collected metric totals and releases the providers.
func NewLogging(logger *slog.Logger, serviceName string) (*Instrumentation, func(context.Context) error) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&logExporter{logger: logger}),
	)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	in := New(WithTracerProvider(tp), WithMeterProvider(mp), WithServiceName(serviceName))

	shutdown := func(ctx context.Context) error {
		var rm metricdata.ResourceMetrics
		collectErr := reader.Collect(ctx, &rm)
		if collectErr == nil {
			logMetrics(ctx, logger, &rm)
		}
		return stderrors.Join(collectErr, tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	return in, shutdown
}

func logMetrics(ctx context.Context, logger *slog.Logger, rm *metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				logger.InfoContext(ctx, "telemetry metric", "metric", m.Name, "total", total)
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				logger.InfoContext(ctx, "telemetry metric", "metric", m.Name, "count", count, "sum", sum)
			}
		}
	}
}
