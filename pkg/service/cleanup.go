package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultCleanupInterval keeps demo deployments from piling up test data.
const DefaultCleanupInterval = 5 * time.Hour

// RunCleanup deletes all events every interval until ctx is cancelled. An
// interval of zero or less disables it.
func (s *EventService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Info("Scheduled event cleanup disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info("Scheduled cleanup: deleting all events")
			if err := s.DeleteAllEvents(ctx); err != nil {
				log.Error("Scheduled cleanup failed: ", err)
			}
		}
	}
}
