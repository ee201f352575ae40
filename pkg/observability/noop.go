package observability

import (
	"context"
	"time"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordEventCreated(_ context.Context) {}

func (NoopMetrics) RecordTransition(_ context.Context, _ string) {}

func (NoopMetrics) RecordDispatch(_ context.Context, _ string, _ time.Duration) {}

func (NoopMetrics) RecordNotification(_ context.Context, _ string, _, _ int) {}
