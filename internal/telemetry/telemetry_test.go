package telemetry

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mcncl/schemagen/internal/errors"
)

func newTestInstrumentation(t *testing.T) (*Instrumentation, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	return New(WithTracerProvider(tp), WithMeterProvider(mp), WithServiceName("schemagen-test")), exporter, reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestInferDocument_Success(t *testing.T) {
	in, exporter, reader := newTestInstrumentation(t)

	called := false
	err := in.InferDocument(context.Background(), "users.json", 2, func(ctx context.Context) error {
		called = true
		AddEvent(ctx, "merged", attribute.Int("properties", 3))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "schemagen.infer_document", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)
	assert.Contains(t, span.Attributes, attribute.String("schemagen.source", "users.json"))
	assert.Contains(t, span.Attributes, attribute.Int("schemagen.document_index", 2))
	assert.Contains(t, span.Attributes, attribute.String("service.name", "schemagen-test"))
	require.Len(t, span.Events, 1)
	assert.Equal(t, "merged", span.Events[0].Name)

	assert.Equal(t, int64(1), counterValue(t, reader, "schemagen.documents"))
	assert.Equal(t, int64(0), counterValue(t, reader, "schemagen.inference.errors"))
}

func TestInferDocument_Failure(t *testing.T) {
	in, exporter, reader := newTestInstrumentation(t)

	failure := errors.NewUnsupportedError("NaN is not representable in JSON")
	err := in.InferDocument(context.Background(), "stdin", 0, func(context.Context) error {
		return failure
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedValue))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Contains(t, span.Attributes, attribute.String("schemagen.error_type", "unsupported"))
	assert.NotEmpty(t, span.Events, "expected the error to be recorded as an event")

	assert.Equal(t, int64(0), counterValue(t, reader, "schemagen.documents"))
	assert.Equal(t, int64(1), counterValue(t, reader, "schemagen.inference.errors"))
}

func TestNew_DefaultsToGlobalProviders(t *testing.T) {
	in := New()
	require.NotNil(t, in)
	assert.Equal(t, "schemagen", in.serviceName)

	err := in.InferDocument(context.Background(), "stdin", 0, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestNewLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	in, shutdown := NewLogging(logger, "schemagen-log")
	err := in.InferDocument(context.Background(), "orders.json", 0, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "span=schemagen.infer_document")
	assert.Contains(t, out, "schemagen.source=orders.json")
	assert.Contains(t, out, "metric=schemagen.documents total=1")
	assert.Contains(t, out, "metric=schemagen.inference.duration count=1")
}
