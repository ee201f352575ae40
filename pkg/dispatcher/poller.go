package dispatcher

import (
	"context"
	"time"

	"github.com/nsyszr/eventhub/pkg/queue"
	log "github.com/sirupsen/logrus"
)

// DefaultPollInterval is the pause between two poll cycles.
const DefaultPollInterval = 2 * time.Second

// RunPoller takes at most one message from q per cycle and handles it. The
// interval runs from the end of one cycle to the start of the next. It
// returns when ctx is cancelled.
func (d *Dispatcher) RunPoller(ctx context.Context, q queue.Poller, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	log.WithField("interval", interval).Info("Starting event poller")

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Event poller stopped")
			return
		case <-timer.C:
			d.pollOnce(ctx, q)
			timer.Reset(interval)
		}
	}
}

// pollOnce is a no-op on an empty queue.
func (d *Dispatcher) pollOnce(ctx context.Context, q queue.Poller) bool {
	msg, ok := q.Poll()
	if !ok {
		return false
	}
	d.Handle(ctx, msg)
	return true
}
