package dispatcher

import (
	"context"
	"math/rand"
	"time"

	"github.com/nsyszr/eventhub/pkg/queue"
)

const (
	DefaultMinDelay = time.Second
	DefaultMaxDelay = 2 * time.Second
)

// Processor does the work for one message. A returned error fails the event.
type Processor interface {
	Process(ctx context.Context, msg *queue.EventMessage) error
}

// SimulatedProcessor stands in for real work by waiting a random duration
// between MinDelay and MaxDelay.
type SimulatedProcessor struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewSimulatedProcessor creates a processor waiting between min and max.
func NewSimulatedProcessor(min, max time.Duration) *SimulatedProcessor {
	if max < min {
		max = min
	}
	return &SimulatedProcessor{MinDelay: min, MaxDelay: max}
}

// Process returns ctx.Err() when ctx ends before the work is done.
func (p *SimulatedProcessor) Process(ctx context.Context, _ *queue.EventMessage) error {
	timer := time.NewTimer(p.delay())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *SimulatedProcessor) delay() time.Duration {
	spread := p.MaxDelay - p.MinDelay
	if spread <= 0 {
		return p.MinDelay
	}
	return p.MinDelay + time.Duration(rand.Int63n(int64(spread)+1))
}
