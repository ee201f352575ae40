package model

import (
	"fmt"
	"strings"
	"time"
)

// EventStatus is the processing state of an event
type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusProcessed  EventStatus = "PROCESSED"
	EventStatusFailed     EventStatus = "FAILED"
)

// EventStatuses lists every status in lifecycle order.
var EventStatuses = []EventStatus{
	EventStatusPending,
	EventStatusProcessing,
	EventStatusProcessed,
	EventStatusFailed,
}

func (s EventStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses.
func (s EventStatus) IsValid() bool {
	for _, known := range EventStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseEventStatus converts a status name in any letter case.
func ParseEventStatus(s string) (EventStatus, error) {
	status := EventStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown event status '%s'", s)
	}
	return status, nil
}

// Event is a model of the persistency layer
type Event struct {
	ID          int64
	Title       string
	Description string
	Source      string
	Type        string
	Status      EventStatus
	RetryCount  int

	CreatedAt   time.Time
	ProcessedAt *time.Time
}
