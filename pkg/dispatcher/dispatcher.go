// Package dispatcher takes queued event messages, processes them and
// resolves each event to PROCESSED or FAILED.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/observability"
	"github.com/nsyszr/eventhub/pkg/queue"
	log "github.com/sirupsen/logrus"
)

// StatusUpdater applies status transitions. The dispatcher never writes to
// the store itself.
type StatusUpdater interface {
	UpdateEventStatus(ctx context.Context, id int64, status model.EventStatus) (*model.Event, error)
}

// Dispatcher resolves queued events through a Processor.
type Dispatcher struct {
	processor Processor
	updater   StatusUpdater
	metrics   observability.MetricsRecorder
}

// New creates a dispatcher. A nil metrics recorder disables metrics.
func New(processor Processor, updater StatusUpdater, metrics observability.MetricsRecorder) *Dispatcher {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Dispatcher{
		processor: processor,
		updater:   updater,
		metrics:   metrics,
	}
}

// Handle processes msg and records the outcome. It never fails: errors are
// logged so one bad event can't stop the following ones.
func (d *Dispatcher) Handle(ctx context.Context, msg *queue.EventMessage) {
	logger := log.WithField("event_id", msg.EventID)
	start := time.Now()

	status := model.EventStatusProcessed
	if err := d.process(ctx, msg); err != nil {
		logger.Warn("Event processing failed: ", err)
		status = model.EventStatusFailed
	}

	// The outcome is recorded even when ctx was cancelled mid-work
	updateCtx := context.WithoutCancel(ctx)
	if _, err := d.updater.UpdateEventStatus(updateCtx, msg.EventID, status); err != nil {
		logger.WithField("status", status).Error("Failed to update event status: ", err)
		return
	}

	d.metrics.RecordDispatch(updateCtx, status.String(), time.Since(start))
	logger.WithField("status", status).Debug("Event dispatched")
}

func (d *Dispatcher) process(ctx context.Context, msg *queue.EventMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	return d.processor.Process(ctx, msg)
}
