package resource

import (
	"time"

	"github.com/nsyszr/eventhub/pkg/model"
)

type EventResource struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Source      string     `json:"source"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt"`
	RetryCount  int        `json:"retryCount"`
}

// CreateEventResource is the body of a create request
type CreateEventResource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Type        string `json:"type"`
}

func NewEvent(m *model.Event) (out *EventResource) {
	out = &EventResource{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Source:      m.Source,
		Type:        m.Type,
		Status:      m.Status.String(),
		CreatedAt:   m.CreatedAt.UTC(),
		RetryCount:  m.RetryCount,
	}

	if m.ProcessedAt != nil {
		out.ProcessedAt = &time.Time{}
		*out.ProcessedAt = m.ProcessedAt.UTC()
	}

	return // out
}

// NewEventList keeps the order of m, which the store returns newest first.
func NewEventList(m []model.Event) (out []*EventResource) {
	out = make([]*EventResource, 0, len(m))

	for i := range m {
		out = append(out, NewEvent(&m[i]))
	}

	return // out
}
