package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/storage"
	"github.com/pkg/errors"
)

func newEventStore(db *sqlx.DB) *eventStore {
	return &eventStore{
		db:  db,
		now: time.Now,
	}
}

type eventStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type sqlDataEvent struct {
	ID          int64        `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	Source      string       `db:"source"`
	Type        string       `db:"type"`
	Status      string       `db:"status"`
	RetryCount  int          `db:"retry_count"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt sql.NullTime `db:"processed_at"`
}

var sqlParamsEvent = []string{
	"id",
	"title",
	"description",
	"source",
	"type",
	"status",
	"retry_count",
	"created_at",
	"processed_at",
}

const selectEventsQuery = "SELECT id, title, description, source, type, status, retry_count, created_at, processed_at FROM events"

const orderNewestFirst = " ORDER BY created_at DESC, id DESC"

func (d *sqlDataEvent) Scan(m *model.Event) error {
	status := m.Status
	if status == "" {
		status = model.EventStatusPending
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid event status '%s'", status)
	}

	d.ID = m.ID
	d.Title = m.Title
	d.Description = m.Description
	d.Source = m.Source
	d.Type = m.Type
	d.Status = status.String()
	d.RetryCount = m.RetryCount
	d.CreatedAt = m.CreatedAt.UTC()
	d.ProcessedAt = sql.NullTime{}
	if m.ProcessedAt != nil {
		d.ProcessedAt = sql.NullTime{Time: m.ProcessedAt.UTC(), Valid: true}
	}

	return nil
}

func (d *sqlDataEvent) Model() (*model.Event, error) {
	status, err := model.ParseEventStatus(d.Status)
	if err != nil {
		return nil, err
	}

	m := &model.Event{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Source:      d.Source,
		Type:        d.Type,
		Status:      status,
		RetryCount:  d.RetryCount,
		CreatedAt:   d.CreatedAt.UTC(),
	}
	if d.ProcessedAt.Valid {
		t := d.ProcessedAt.Time.UTC()
		m.ProcessedAt = &t
	}

	return m, nil
}

func (s *eventStore) FetchAll(ctx context.Context) ([]model.Event, error) {
	return s.selectEvents(ctx, selectEventsQuery+orderNewestFirst)
}

func (s *eventStore) FindByID(ctx context.Context, id int64) (*model.Event, error) {
	d := sqlDataEvent{}
	query := s.db.Rebind(selectEventsQuery + " WHERE id=?")
	if err := s.db.GetContext(ctx, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find event")
	}

	return d.Model()
}

func (s *eventStore) FindByStatus(ctx context.Context, status model.EventStatus) ([]model.Event, error) {
	query := selectEventsQuery + " WHERE status=?" + orderNewestFirst
	return s.selectEvents(ctx, query, status.String())
}

func (s *eventStore) CountByStatus(ctx context.Context, status model.EventStatus) (int64, error) {
	var n int64
	query := s.db.Rebind("SELECT COUNT(*) FROM events WHERE status=?")
	if err := s.db.GetContext(ctx, &n, query, status.String()); err != nil {
		return 0, errors.Wrap(err, "failed to count events by status")
	}
	return n, nil
}

func (s *eventStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM events"); err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return n, nil
}

func (s *eventStore) Create(ctx context.Context, m *model.Event) error {
	d := sqlDataEvent{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert event model to SQL data")
	}
	// Postgres keeps microseconds
	d.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	// Remove the id column because the database assigns it
	sqlParamsWithoutID := make([]string, 0, len(sqlParamsEvent)-1)
	for _, p := range sqlParamsEvent {
		if p != "id" {
			sqlParamsWithoutID = append(sqlParamsWithoutID, p)
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO events (%s) VALUES (%s) RETURNING id",
		strings.Join(sqlParamsWithoutID, ", "),
		":"+strings.Join(sqlParamsWithoutID, ", :"),
	)
	rows, err := sqlx.NamedQueryContext(ctx, s.db, query, d)
	if err != nil {
		return errors.Wrap(err, "failed to create event")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "failed to create event")
		}
		return errors.New("failed to create event: no id returned")
	}
	if err := rows.Scan(&d.ID); err != nil {
		return errors.Wrap(err, "failed to read created event id")
	}

	m.ID = d.ID
	m.Status = model.EventStatus(d.Status)
	m.CreatedAt = d.CreatedAt

	return nil
}

func (s *eventStore) Update(ctx context.Context, m *model.Event) error {
	d := sqlDataEvent{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert event model to SQL data")
	}

	// An existing processed_at wins, so concurrent duplicate deliveries
	// can't overwrite the first stamp.
	query := s.db.Rebind(`UPDATE events
		SET title=?, description=?, source=?, type=?, status=?, retry_count=?,
			processed_at=COALESCE(processed_at, ?)
		WHERE id=?`)
	res, err := s.db.ExecContext(ctx, query,
		d.Title, d.Description, d.Source, d.Type, d.Status, d.RetryCount, d.ProcessedAt, d.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to update event")
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	// created_at and processed_at are owned by the database
	stamps := struct {
		CreatedAt   time.Time    `db:"created_at"`
		ProcessedAt sql.NullTime `db:"processed_at"`
	}{}
	err = s.db.GetContext(ctx, &stamps, s.db.Rebind("SELECT created_at, processed_at FROM events WHERE id=?"), d.ID)
	if err != nil {
		return errors.Wrap(err, "failed to read event timestamps")
	}

	m.Status = model.EventStatus(d.Status)
	m.CreatedAt = stamps.CreatedAt.UTC()
	m.ProcessedAt = nil
	if stamps.ProcessedAt.Valid {
		t := stamps.ProcessedAt.Time.UTC()
		m.ProcessedAt = &t
	}

	return nil
}

func (s *eventStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return errors.Wrap(err, "failed to delete events")
	}
	return nil
}

func (s *eventStore) selectEvents(ctx context.Context, query string, args ...interface{}) ([]model.Event, error) {
	rows := make([]sqlDataEvent, 0)
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to fetch events")
	}

	models := make([]model.Event, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert SQL data to event model")
		}
		models = append(models, *m)
	}

	return models, nil
}
