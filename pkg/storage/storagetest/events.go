// Package storagetest holds the behaviour every EventStore implementation
// has to provide. Backends run it from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/storage"
)

// RunEventStoreTests runs the shared event store tests. newStore must return
// an empty store for every call.
func RunEventStoreTests(t *testing.T, newStore func(t *testing.T) storage.EventStore) {
	t.Run("CreateAssignsIdentity", func(t *testing.T) {
		testCreateAssignsIdentity(t, newStore(t))
	})
	t.Run("FindByIDNotFound", func(t *testing.T) {
		testFindByIDNotFound(t, newStore(t))
	})
	t.Run("UpdateKeepsCreatedAt", func(t *testing.T) {
		testUpdateKeepsCreatedAt(t, newStore(t))
	})
	t.Run("UpdateKeepsFirstProcessedAt", func(t *testing.T) {
		testUpdateKeepsFirstProcessedAt(t, newStore(t))
	})
	t.Run("UpdateNotFound", func(t *testing.T) {
		testUpdateNotFound(t, newStore(t))
	})
	t.Run("FetchAllNewestFirst", func(t *testing.T) {
		testFetchAllNewestFirst(t, newStore(t))
	})
	t.Run("FindAndCountByStatus", func(t *testing.T) {
		testFindAndCountByStatus(t, newStore(t))
	})
	t.Run("DeleteAll", func(t *testing.T) {
		testDeleteAll(t, newStore(t))
	})
}

func newEvent(title string) *model.Event {
	return &model.Event{
		Title:       title,
		Description: "description of " + title,
		Source:      "storagetest",
		Type:        "TEST",
	}
}

func testCreateAssignsIdentity(t *testing.T, s storage.EventStore) {
	ctx := context.Background()

	a := newEvent("A")
	b := newEvent("B")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	assert.NotZero(t, a.ID)
	assert.NotZero(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, model.EventStatusPending, a.Status)
	assert.Nil(t, a.ProcessedAt)

	got, err := s.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "description of A", got.Description)
	assert.Equal(t, "storagetest", got.Source)
	assert.Equal(t, "TEST", got.Type)
	assert.Equal(t, model.EventStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.ProcessedAt)
}

func testFindByIDNotFound(t *testing.T, s storage.EventStore) {
	_, err := s.FindByID(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
}

func testUpdateKeepsCreatedAt(t *testing.T, s storage.EventStore) {
	ctx := context.Background()

	m := newEvent("update")
	require.NoError(t, s.Create(ctx, m))
	createdAt := m.CreatedAt

	processedAt := time.Now().UTC().Add(time.Minute)
	m.Status = model.EventStatusProcessed
	m.ProcessedAt = &processedAt
	m.CreatedAt = createdAt.Add(-time.Hour)
	require.NoError(t, s.Update(ctx, m))

	got, err := s.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, got.Status)
	require.NotNil(t, got.ProcessedAt)
	assert.WithinDuration(t, processedAt, *got.ProcessedAt, time.Millisecond)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Millisecond)
}

// Two writers that both read the event before it was processed must end up
// with the stamp of the first one.
func testUpdateKeepsFirstProcessedAt(t *testing.T, s storage.EventStore) {
	ctx := context.Background()

	m := newEvent("duplicate")
	require.NoError(t, s.Create(ctx, m))

	first, err := s.FindByID(ctx, m.ID)
	require.NoError(t, err)
	second, err := s.FindByID(ctx, m.ID)
	require.NoError(t, err)

	firstAt := m.CreatedAt.Add(time.Second)
	first.Status = model.EventStatusProcessed
	first.ProcessedAt = &firstAt
	require.NoError(t, s.Update(ctx, first))

	secondAt := m.CreatedAt.Add(time.Minute)
	second.Status = model.EventStatusProcessed
	second.ProcessedAt = &secondAt
	require.NoError(t, s.Update(ctx, second))

	require.NotNil(t, second.ProcessedAt)
	assert.WithinDuration(t, firstAt, *second.ProcessedAt, time.Millisecond)

	// A later FAILED write doesn't clear it either
	second.Status = model.EventStatusFailed
	second.ProcessedAt = nil
	require.NoError(t, s.Update(ctx, second))

	got, err := s.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusFailed, got.Status)
	require.NotNil(t, got.ProcessedAt)
	assert.WithinDuration(t, firstAt, *got.ProcessedAt, time.Millisecond)
}

func testUpdateNotFound(t *testing.T, s storage.EventStore) {
	m := newEvent("ghost")
	m.ID = 4711
	err := s.Update(context.Background(), m)
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
}

func testFetchAllNewestFirst(t *testing.T, s storage.EventStore) {
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, s.Create(ctx, newEvent(title)))
	}

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title)
	assert.Equal(t, "second", all[1].Title)
	assert.Equal(t, "first", all[2].Title)
}

func testFindAndCountByStatus(t *testing.T, s storage.EventStore) {
	ctx := context.Background()

	var events []*model.Event
	for _, title := range []string{"A", "B", "C"} {
		m := newEvent(title)
		require.NoError(t, s.Create(ctx, m))
		events = append(events, m)
	}

	events[1].Status = model.EventStatusFailed
	require.NoError(t, s.Update(ctx, events[1]))

	pending, err := s.FindByStatus(ctx, model.EventStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "C", pending[0].Title)
	assert.Equal(t, "A", pending[1].Title)

	failed, err := s.FindByStatus(ctx, model.EventStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "B", failed[0].Title)

	processing, err := s.FindByStatus(ctx, model.EventStatusProcessing)
	require.NoError(t, err)
	assert.Empty(t, processing)

	n, err := s.CountByStatus(ctx, model.EventStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountByStatus(ctx, model.EventStatusProcessed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func testDeleteAll(t *testing.T, s storage.EventStore) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newEvent("A")))
	require.NoError(t, s.Create(ctx, newEvent("B")))
	require.NoError(t, s.DeleteAll(ctx))

	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Identity keeps growing after a wipe
	m := newEvent("C")
	require.NoError(t, s.Create(ctx, m))
	assert.NotZero(t, m.ID)
}
