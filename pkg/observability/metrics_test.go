package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		provider.Shutdown(context.Background())
	})

	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumByAttribute(t *testing.T, m *metricdata.Metrics, key string) map[string]int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", m.Data)

	values := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		values[v.AsString()] += dp.Value
	}
	return values
}

func TestRecordEventsAndTransitions(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEventCreated(ctx)
	m.RecordEventCreated(ctx)
	m.RecordTransition(ctx, "PROCESSED")
	m.RecordTransition(ctx, "FAILED")
	m.RecordTransition(ctx, "PROCESSED")

	rm := collectMetrics(t, reader)

	created := findMetric(rm, "eventhub.events.created")
	require.NotNil(t, created)
	sum, ok := created.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	transitions := sumByAttribute(t, findMetric(rm, "eventhub.events.transitions"), "status")
	assert.Equal(t, int64(2), transitions["PROCESSED"])
	assert.Equal(t, int64(1), transitions["FAILED"])
}

func TestRecordDispatch(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordDispatch(context.Background(), "PROCESSED", 1500*time.Millisecond)

	rm := collectMetrics(t, reader)
	latency := findMetric(rm, "eventhub.dispatch.latency_ms")
	require.NotNil(t, latency)

	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, float64(1500), hist.DataPoints[0].Sum)
}

func TestRecordNotification(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordNotification(ctx, "event-created", 2, 1)
	m.RecordNotification(ctx, "event-updated", 3, 0)

	rm := collectMetrics(t, reader)

	delivered := sumByAttribute(t, findMetric(rm, "eventhub.notifications.delivered"), "event")
	assert.Equal(t, int64(2), delivered["event-created"])
	assert.Equal(t, int64(3), delivered["event-updated"])

	dropped := sumByAttribute(t, findMetric(rm, "eventhub.notifications.dropped"), "event")
	assert.Equal(t, map[string]int64{"event-created": 1}, dropped)
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordEventCreated(ctx)
		m.RecordTransition(ctx, "PROCESSED")
		m.RecordDispatch(ctx, "FAILED", time.Second)
		m.RecordNotification(ctx, "events-cleared", 0, 0)
	})
}

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tp.Shutdown(context.Background())
	})

	_, span := StartSpan(context.Background(), "eventhub.create", attribute.Int64("event.id", 1))
	EndSpanWithError(span, nil)

	_, span = StartSpan(context.Background(), "eventhub.update")
	EndSpanWithError(span, assert.AnError)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "eventhub.create", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, "eventhub.update", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	assert.NotPanics(t, func() { EndSpanWithError(nil, nil) })
}
