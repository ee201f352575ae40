// Package notification fans out event notifications to live subscribers
// such as SSE and WebSocket streams.
package notification

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsyszr/eventhub/pkg/observability"
	log "github.com/sirupsen/logrus"
)

// Notification names
const (
	EventCreated  = "event-created"
	EventUpdated  = "event-updated"
	EventsCleared = "events-cleared"
)

const (
	DefaultBufferSize = 64
	DefaultLifetime   = time.Hour
)

// Config configures a Hub. Zero values fall back to the defaults.
type Config struct {
	BufferSize int
	Lifetime   time.Duration
	Metrics    observability.MetricsRecorder
}

// Hub owns the set of live subscribers. Broadcasts read an immutable
// snapshot of the set; subscribe and remove replace it under a mutex.
type Hub struct {
	subscribers atomic.Pointer[[]*Subscriber]
	mu          sync.Mutex
	bufferSize  int
	lifetime    time.Duration
	metrics     observability.MetricsRecorder
}

// NewHub creates a hub without subscribers.
func NewHub(cfg Config) *Hub {
	h := &Hub{
		bufferSize: cfg.BufferSize,
		lifetime:   cfg.Lifetime,
		metrics:    cfg.Metrics,
	}
	if h.bufferSize <= 0 {
		h.bufferSize = DefaultBufferSize
	}
	if h.lifetime <= 0 {
		h.lifetime = DefaultLifetime
	}
	if h.metrics == nil {
		h.metrics = observability.NoopMetrics{}
	}

	empty := make([]*Subscriber, 0)
	h.subscribers.Store(&empty)

	return h
}

// Subscribe registers a new live subscriber.
func (h *Hub) Subscribe() *Subscriber {
	s := newSubscriber(h, h.bufferSize, h.lifetime)

	h.mu.Lock()
	current := *h.subscribers.Load()
	next := make([]*Subscriber, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, s)
	h.subscribers.Store(&next)
	n := len(next)
	h.mu.Unlock()

	log.WithFields(log.Fields{
		"subscriber_id": s.ID,
		"subscribers":   n,
	}).Debug("Subscriber added")

	return s
}

// Broadcast sends the JSON encoding of payload as notification name to every
// live subscriber and returns how many accepted it. Subscribers that are
// closed or can't keep up are removed and closed.
func (h *Hub) Broadcast(name string, payload interface{}) int {
	subs := *h.subscribers.Load()
	if len(subs) == 0 {
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.WithField("event", name).Error("Failed to encode notification: ", err)
		return 0
	}

	n := Notification{Name: name, Data: data}
	delivered := 0
	var failed []*Subscriber
	for _, s := range subs {
		if s.offer(n) {
			delivered++
		} else {
			failed = append(failed, s)
		}
	}

	if len(failed) > 0 {
		h.remove(failed...)
		for _, s := range failed {
			s.Close()
		}
		log.WithFields(log.Fields{
			"event":   name,
			"dropped": len(failed),
		}).Debug("Dropped subscribers during broadcast")
	}

	h.metrics.RecordNotification(context.Background(), name, delivered, len(failed))

	return delivered
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	return len(*h.subscribers.Load())
}

// CloseAll closes every live subscriber.
func (h *Hub) CloseAll() {
	for _, s := range *h.subscribers.Load() {
		s.Close()
	}
}

func (h *Hub) remove(gone ...*Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := *h.subscribers.Load()
	next := make([]*Subscriber, 0, len(current))
	for _, s := range current {
		if !containsSubscriber(gone, s) {
			next = append(next, s)
		}
	}
	if len(next) != len(current) {
		h.subscribers.Store(&next)
	}
}

func containsSubscriber(subs []*Subscriber, s *Subscriber) bool {
	for _, candidate := range subs {
		if candidate == s {
			return true
		}
	}
	return false
}
