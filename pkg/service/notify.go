package service

import (
	"encoding/json"

	"github.com/nsyszr/eventhub/pkg/api/resource"
	"github.com/nsyszr/eventhub/pkg/model"
)

var newEventResource = resource.NewEvent

// eventPayload builds the event resource only when the hub encodes it, which
// it skips while nobody is subscribed.
type eventPayload struct {
	m *model.Event
}

func (p eventPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(newEventResource(p.m))
}
