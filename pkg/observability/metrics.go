// Package observability records eventhub metrics and spans with
// OpenTelemetry. Both use the global OTel providers, so nothing is exported
// until the process installs real ones.
package observability

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/nsyszr/eventhub"

// MetricsRecorder records eventhub metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventCreated counts a stored event.
	RecordEventCreated(ctx context.Context)

	// RecordTransition counts a status change to status.
	RecordTransition(ctx context.Context, status string)

	// RecordDispatch records how long processing one message took and the
	// status it resolved to.
	RecordDispatch(ctx context.Context, status string, duration time.Duration)

	// RecordNotification records one broadcast.
	RecordNotification(ctx context.Context, name string, delivered, dropped int)
}

type otelMetrics struct {
	eventsCreated          metric.Int64Counter
	transitions            metric.Int64Counter
	dispatchLatency        metric.Float64Histogram
	notificationsDelivered metric.Int64Counter
	notificationsDropped   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(instrumentationName)

	eventsCreated, err := meter.Int64Counter("eventhub.events.created",
		metric.WithDescription("Number of created events"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("eventhub.events.transitions",
		metric.WithDescription("Number of event status transitions"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("eventhub.dispatch.latency_ms",
		metric.WithDescription("Event processing latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	notificationsDelivered, err := meter.Int64Counter("eventhub.notifications.delivered",
		metric.WithDescription("Number of notifications handed to subscribers"),
	)
	if err != nil {
		return nil, err
	}

	notificationsDropped, err := meter.Int64Counter("eventhub.notifications.dropped",
		metric.WithDescription("Number of subscribers dropped during a broadcast"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsCreated:          eventsCreated,
		transitions:            transitions,
		dispatchLatency:        dispatchLatency,
		notificationsDelivered: notificationsDelivered,
		notificationsDropped:   notificationsDropped,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		log.Warn("Metrics initialization failed, using no-op recorder: ", err)
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordEventCreated(ctx context.Context) {
	m.eventsCreated.Add(ctx, 1)
}

func (m *otelMetrics) RecordTransition(ctx context.Context, status string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, status string, duration time.Duration) {
	m.dispatchLatency.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("status", status)))
}

func (m *otelMetrics) RecordNotification(ctx context.Context, name string, delivered, dropped int) {
	attrs := metric.WithAttributes(attribute.String("event", name))
	if delivered > 0 {
		m.notificationsDelivered.Add(ctx, int64(delivered), attrs)
	}
	if dropped > 0 {
		m.notificationsDropped.Add(ctx, int64(dropped), attrs)
	}
}
