package notification

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPayload struct {
	calls *int
}

func (p countingPayload) MarshalJSON() ([]byte, error) {
	*p.calls++
	return []byte(`{"id":1}`), nil
}

func receive(t *testing.T, s *Subscriber) Notification {
	t.Helper()
	select {
	case n := <-s.C():
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
	return Notification{}
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	h := NewHub(Config{})

	calls := 0
	assert.Equal(t, 0, h.Broadcast(EventCreated, countingPayload{calls: &calls}))
	assert.Equal(t, 0, calls, "payload must not be encoded without subscribers")
}

func TestBroadcastEncodesOnce(t *testing.T) {
	h := NewHub(Config{})
	a := h.Subscribe()
	b := h.Subscribe()
	defer a.Close()
	defer b.Close()

	calls := 0
	assert.Equal(t, 2, h.Broadcast(EventCreated, countingPayload{calls: &calls}))
	assert.Equal(t, 1, calls)

	for _, s := range []*Subscriber{a, b} {
		n := receive(t, s)
		assert.Equal(t, EventCreated, n.Name)
		assert.JSONEq(t, `{"id":1}`, string(n.Data))
	}
}

func TestBroadcastNilPayload(t *testing.T) {
	h := NewHub(Config{})
	s := h.Subscribe()
	defer s.Close()

	assert.Equal(t, 1, h.Broadcast(EventsCleared, nil))

	n := receive(t, s)
	assert.Equal(t, EventsCleared, n.Name)
	assert.Equal(t, "null", string(n.Data))
}

func TestClosedSubscriberIsSkipped(t *testing.T) {
	h := NewHub(Config{})
	a := h.Subscribe()
	b := h.Subscribe()
	defer b.Close()
	require.Equal(t, 2, h.Count())

	a.Close()
	a.Close()
	assert.Equal(t, 1, h.Count())

	assert.Equal(t, 1, h.Broadcast(EventUpdated, map[string]int{"id": 1}))
	receive(t, b)

	select {
	case <-a.Done():
	default:
		t.Fatal("closed subscriber must report done")
	}
	assert.Empty(t, a.C())
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := NewHub(Config{BufferSize: 1})
	slow := h.Subscribe()
	fast := h.Subscribe()
	defer fast.Close()

	assert.Equal(t, 2, h.Broadcast(EventCreated, 1))
	receive(t, fast)

	// slow never reads, its buffer is full now
	assert.Equal(t, 1, h.Broadcast(EventCreated, 2))
	assert.Equal(t, 1, h.Count())

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("dropped subscriber must be closed")
	}

	n := receive(t, fast)
	assert.Equal(t, "2", string(n.Data))
}

func TestSubscriberLifetime(t *testing.T) {
	h := NewHub(Config{Lifetime: 20 * time.Millisecond})
	s := h.Subscribe()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("subscriber outlived its lifetime")
	}
	assert.Equal(t, 0, h.Count())
}

func TestPerSubscriberOrder(t *testing.T) {
	h := NewHub(Config{BufferSize: 10})
	s := h.Subscribe()
	defer s.Close()

	for i := 0; i < 5; i++ {
		h.Broadcast(EventUpdated, i)
	}

	for i := 0; i < 5; i++ {
		var got int
		require.NoError(t, json.Unmarshal(receive(t, s).Data, &got))
		assert.Equal(t, i, got)
	}
}

func TestConcurrentSubscribeAndBroadcast(t *testing.T) {
	h := NewHub(Config{BufferSize: 100})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := h.Subscribe()
			s.Close()
		}()
		go func(i int) {
			defer wg.Done()
			h.Broadcast(EventCreated, i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, h.Count())
}

func TestCloseAll(t *testing.T) {
	h := NewHub(Config{})
	a := h.Subscribe()
	b := h.Subscribe()

	h.CloseAll()
	assert.Equal(t, 0, h.Count())
	<-a.Done()
	<-b.Done()
}
