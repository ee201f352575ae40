package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/storage"
)

type eventStore struct {
	store         map[int64]model.Event
	nextID        int64
	lastCreatedAt time.Time
	now           func() time.Time
	sync.RWMutex
}

func newEventStore(now func() time.Time) *eventStore {
	return &eventStore{
		store:  make(map[int64]model.Event),
		nextID: 1,
		now:    now,
	}
}

func (s *eventStore) FetchAll(_ context.Context) ([]model.Event, error) {
	s.RLock()
	defer s.RUnlock()

	return s.collect(func(model.Event) bool { return true }), nil
}

func (s *eventStore) FindByID(_ context.Context, id int64) (*model.Event, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return copyEvent(m), nil
	}

	return nil, storage.ErrNotFound
}

func (s *eventStore) FindByStatus(_ context.Context, status model.EventStatus) ([]model.Event, error) {
	s.RLock()
	defer s.RUnlock()

	return s.collect(func(m model.Event) bool { return m.Status == status }), nil
}

func (s *eventStore) CountByStatus(_ context.Context, status model.EventStatus) (int64, error) {
	s.RLock()
	defer s.RUnlock()

	var n int64
	for _, m := range s.store {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *eventStore) Count(_ context.Context) (int64, error) {
	s.RLock()
	defer s.RUnlock()

	return int64(len(s.store)), nil
}

func (s *eventStore) Create(_ context.Context, m *model.Event) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.getNextID()
	m.CreatedAt = s.nextCreatedAt()
	if m.Status == "" {
		m.Status = model.EventStatusPending
	}

	s.store[m.ID] = *copyEvent(*m)

	return nil
}

func (s *eventStore) Update(_ context.Context, m *model.Event) error {
	s.Lock()
	defer s.Unlock()

	existing, ok := s.store[m.ID]
	if !ok {
		return storage.ErrNotFound
	}

	// CreatedAt is owned by the store and ProcessedAt is stamped once
	m.CreatedAt = existing.CreatedAt
	if existing.ProcessedAt != nil {
		m.ProcessedAt = copyEvent(existing).ProcessedAt
	}

	s.store[m.ID] = *copyEvent(*m)

	return nil
}

func (s *eventStore) DeleteAll(_ context.Context) error {
	s.Lock()
	defer s.Unlock()

	s.store = make(map[int64]model.Event)

	return nil
}

func (s *eventStore) getNextID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// nextCreatedAt never goes backwards, even if the wall clock does.
func (s *eventStore) nextCreatedAt() time.Time {
	t := s.now().UTC()
	if t.Before(s.lastCreatedAt) {
		t = s.lastCreatedAt
	}
	s.lastCreatedAt = t
	return t
}

// collect must be called with the read lock held.
func (s *eventStore) collect(match func(model.Event) bool) []model.Event {
	models := make([]model.Event, 0, len(s.store))
	for _, m := range s.store {
		if match(m) {
			models = append(models, *copyEvent(m))
		}
	}

	// Newest first, ID breaks ties
	sort.Slice(models, func(i, j int) bool {
		if models[i].CreatedAt.Equal(models[j].CreatedAt) {
			return models[i].ID > models[j].ID
		}
		return models[i].CreatedAt.After(models[j].CreatedAt)
	})

	return models
}

// copyEvent detaches the ProcessedAt pointer from the stored value.
func copyEvent(m model.Event) *model.Event {
	if m.ProcessedAt != nil {
		t := *m.ProcessedAt
		m.ProcessedAt = &t
	}
	return &m
}
