// Package queue defines how created events are handed over to the
// dispatcher. Two backends exist: an in-process FIFO (memory) and a durable
// NATS JetStream broker (natsio).
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nsyszr/eventhub/pkg/model"
)

// EventMessage is the projection of an event that travels through a queue.
type EventMessage struct {
	EventID   int64     `json:"eventId"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventMessage projects the event m into a message stamped with the
// current time.
func NewEventMessage(m *model.Event) *EventMessage {
	return &EventMessage{
		EventID:   m.ID,
		Title:     m.Title,
		Source:    m.Source,
		Type:      m.Type,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher enqueues messages. Publish must not block beyond the enqueue.
type Publisher interface {
	Publish(ctx context.Context, msg *EventMessage) error
	IsDurable() bool
}

// Poller is implemented by queues the dispatcher drains itself.
type Poller interface {
	// Poll returns the oldest message, or false when the queue is empty.
	Poll() (*EventMessage, bool)
}

// Handler processes one delivered message.
type Handler func(ctx context.Context, msg *EventMessage)

// Consumer is implemented by queues that push messages to a handler.
type Consumer interface {
	Subscribe(ctx context.Context, handler Handler) error
}

// PublishError is returned when a message could not be handed to the
// transport.
type PublishError struct {
	EventID int64
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish event %d: %s", e.EventID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// IsPublishError reports whether err is or wraps a PublishError.
func IsPublishError(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}
