package memory

import (
	"time"

	"github.com/nsyszr/eventhub/pkg/storage"
)

// Store contains all memory-based sub-stores for managing the persistent models
type store struct {
	events *eventStore
}

// NewStore creates a new memory-based Storage interface
func NewStore() storage.Interface {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates a memory-based Storage interface that takes
// creation timestamps from now.
func NewStoreWithClock(now func() time.Time) storage.Interface {
	return &store{
		events: newEventStore(now),
	}
}

// Events returns a sub-store for managing the event model
func (s *store) Events() storage.EventStore {
	return s.events
}
