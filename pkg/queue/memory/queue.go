package memory

import (
	"context"
	"sync"

	"github.com/nsyszr/eventhub/pkg/queue"
	log "github.com/sirupsen/logrus"
)

// Queue is an unbounded in-process FIFO. Messages are lost on restart.
type Queue struct {
	messages []*queue.EventMessage
	sync.Mutex
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		messages: make([]*queue.EventMessage, 0),
	}
}

// Publish appends msg. It never fails.
func (q *Queue) Publish(_ context.Context, msg *queue.EventMessage) error {
	q.Lock()
	defer q.Unlock()

	q.messages = append(q.messages, msg)

	log.WithFields(log.Fields{
		"event_id":   msg.EventID,
		"queue_size": len(q.messages),
	}).Debug("Event queued")

	return nil
}

// Poll removes and returns the oldest message.
func (q *Queue) Poll() (*queue.EventMessage, bool) {
	q.Lock()
	defer q.Unlock()

	if len(q.messages) == 0 {
		return nil, false
	}

	msg := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]

	return msg, true
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()

	return len(q.messages)
}

func (q *Queue) IsDurable() bool {
	return false
}
