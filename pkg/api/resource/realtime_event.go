package resource

import "encoding/json"

// RealtimeEventResource is one notification as sent over a WebSocket
type RealtimeEventResource struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewRealtimeEvent(name string, data json.RawMessage) *RealtimeEventResource {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return &RealtimeEventResource{
		Event: name,
		Data:  data,
	}
}
