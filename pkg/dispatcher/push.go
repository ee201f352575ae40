package dispatcher

import (
	"context"

	"github.com/nsyszr/eventhub/pkg/queue"
)

// Consume registers the dispatcher with a push based queue. Redelivered
// messages are harmless since applying a terminal status twice changes
// nothing.
func (d *Dispatcher) Consume(ctx context.Context, c queue.Consumer) error {
	return c.Subscribe(ctx, d.Handle)
}
