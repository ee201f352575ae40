package notification

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is one named message with its JSON encoded payload.
type Notification struct {
	Name string
	Data json.RawMessage
}

// Subscriber is a live handle receiving notifications until it is closed,
// dropped by the hub or its lifetime ends.
type Subscriber struct {
	ID        string
	CreatedAt time.Time

	hub    *Hub
	ch     chan Notification
	done   chan struct{}
	timer  *time.Timer
	closed bool
	once   sync.Once
	mu     sync.Mutex
}

func newSubscriber(h *Hub, bufferSize int, lifetime time.Duration) *Subscriber {
	s := &Subscriber{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		hub:       h,
		ch:        make(chan Notification, bufferSize),
		done:      make(chan struct{}),
	}
	if lifetime > 0 {
		s.timer = time.AfterFunc(lifetime, s.Close)
	}
	return s
}

// C delivers notifications in broadcast order.
func (s *Subscriber) C() <-chan Notification {
	return s.ch
}

// Done is closed once the subscriber is closed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Close detaches the subscriber from the hub. It is safe to call more than
// once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		s.mu.Unlock()

		if s.timer != nil {
			s.timer.Stop()
		}
		s.hub.remove(s)
	})
}

// offer hands n over without blocking. It reports false when the subscriber
// is closed or its buffer is full.
func (s *Subscriber) offer(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}
