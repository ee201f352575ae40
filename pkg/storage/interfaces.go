package storage

import (
	"context"

	"github.com/nsyszr/eventhub/pkg/model"
)

// Interface is implemented by the storage
type Interface interface {
	Events() EventStore
}

// EventStore is responsible for managing the Event model. Every method is
// atomic on its own; there are no cross-event transactions.
type EventStore interface {
	// FetchAll returns all events, newest first.
	FetchAll(ctx context.Context) ([]model.Event, error)
	FindByID(ctx context.Context, id int64) (*model.Event, error)
	// FindByStatus returns the events in the given status, newest first.
	FindByStatus(ctx context.Context, status model.EventStatus) ([]model.Event, error)
	CountByStatus(ctx context.Context, status model.EventStatus) (int64, error)
	Count(ctx context.Context) (int64, error)
	// Create assigns the ID and CreatedAt of m.
	Create(ctx context.Context, m *model.Event) error
	// Update replaces the mutable fields of an existing event. ID and
	// CreatedAt are never changed, and a ProcessedAt already stored is
	// neither cleared nor overwritten. m receives the stored timestamps.
	Update(ctx context.Context, m *model.Event) error
	DeleteAll(ctx context.Context) error
}
