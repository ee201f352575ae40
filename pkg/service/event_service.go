// Package service coordinates the lifecycle of events: it stores them, puts
// them on the queue, applies status transitions and notifies subscribers.
package service

import (
	"context"
	"time"

	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/notification"
	"github.com/nsyszr/eventhub/pkg/observability"
	"github.com/nsyszr/eventhub/pkg/queue"
	"github.com/nsyszr/eventhub/pkg/storage"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Broadcaster delivers a named notification to live subscribers.
type Broadcaster interface {
	Broadcast(name string, payload interface{}) int
}

// Stats is a point-in-time count of events per status.
type Stats struct {
	Total         int64
	Pending       int64
	Processing    int64
	Processed     int64
	Failed        int64
	BrokerEnabled bool
}

// EventService is the only component changing an event's status.
type EventService struct {
	store     storage.EventStore
	publisher queue.Publisher
	notifier  Broadcaster
	metrics   observability.MetricsRecorder
	now       func() time.Time
}

// NewEventService creates the coordinator. A nil metrics recorder disables
// metrics.
func NewEventService(store storage.EventStore, publisher queue.Publisher, notifier Broadcaster, metrics observability.MetricsRecorder) *EventService {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &EventService{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CreateEvent validates r, stores the new event as PENDING, queues it and
// notifies subscribers. A failed publish is logged only: the stored event
// stays.
func (s *EventService) CreateEvent(ctx context.Context, r *CreateEventRequest) (m *model.Event, err error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "eventhub.events.create",
		attribute.String("event.source", r.Source),
		attribute.String("event.type", r.Type),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	logger := log.WithFields(log.Fields{
		"title":  r.Title,
		"source": r.Source,
		"type":   r.Type,
	})
	logger.Info("Creating new event")

	m = &model.Event{
		Title:       r.Title,
		Description: r.Description,
		Source:      r.Source,
		Type:        r.Type,
		Status:      model.EventStatusPending,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("event.id", m.ID))
	s.metrics.RecordEventCreated(ctx)

	if err := s.publisher.Publish(ctx, queue.NewEventMessage(m)); err != nil {
		logger.WithField("event_id", m.ID).Error("Failed to queue event: ", err)
	}

	logger.WithFields(log.Fields{
		"event_id": m.ID,
		"durable":  s.publisher.IsDurable(),
	}).Info("Event created")

	s.notifier.Broadcast(notification.EventCreated, eventPayload{m: m})

	return m, nil
}

func (s *EventService) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	return s.store.FetchAll(ctx)
}

func (s *EventService) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	return m, nil
}

func (s *EventService) GetEventsByStatus(ctx context.Context, status model.EventStatus) ([]model.Event, error) {
	return s.store.FindByStatus(ctx, status)
}

// UpdateEventStatus moves the event to status. Any status may follow any
// other. PROCESSED stamps ProcessedAt the first time only, so a redelivered
// message leaves the event unchanged.
func (s *EventService) UpdateEventStatus(ctx context.Context, id int64, status model.EventStatus) (m *model.Event, err error) {
	if !status.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "Unknown status " + status.String()}}
	}

	ctx, span := observability.StartSpan(ctx, "eventhub.events.update_status",
		attribute.Int64("event.id", id),
		attribute.String("event.status", status.String()),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	m, err = s.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}

	m.Status = status
	if status == model.EventStatusProcessed && m.ProcessedAt == nil {
		processedAt := s.now().UTC()
		if processedAt.Before(m.CreatedAt) {
			processedAt = m.CreatedAt
		}
		m.ProcessedAt = &processedAt
	}

	if err := s.store.Update(ctx, m); err != nil {
		if storage.IsNotFound(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	s.metrics.RecordTransition(ctx, status.String())

	log.WithFields(log.Fields{
		"event_id": m.ID,
		"status":   m.Status,
	}).Info("Event status updated")

	s.notifier.Broadcast(notification.EventUpdated, eventPayload{m: m})

	return m, nil
}

// GetStats counts events per status at call time.
func (s *EventService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BrokerEnabled: s.publisher.IsDurable()}

	counts := []struct {
		status model.EventStatus
		dst    *int64
	}{
		{model.EventStatusPending, &stats.Pending},
		{model.EventStatusProcessing, &stats.Processing},
		{model.EventStatusProcessed, &stats.Processed},
		{model.EventStatusFailed, &stats.Failed},
	}
	for _, c := range counts {
		n, err := s.store.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Total = total

	return stats, nil
}

// DeleteAllEvents removes every event and tells subscribers to clear.
func (s *EventService) DeleteAllEvents(ctx context.Context) error {
	log.Info("Deleting all events")

	if err := s.store.DeleteAll(ctx); err != nil {
		return err
	}

	log.Info("All events deleted")
	s.notifier.Broadcast(notification.EventsCleared, nil)

	return nil
}
