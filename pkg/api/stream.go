package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo"
	"github.com/nsyszr/eventhub/pkg/notification"
	log "github.com/sirupsen/logrus"
)

// handleSubscribe streams notifications as server-sent events until the
// client goes away or the hub drops the subscriber.
func (h *Handler) handleSubscribe(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe()
	defer sub.Close()

	logger := log.WithField("subscriber_id", sub.ID)
	logger.Info("SSE client connected")
	defer logger.Info("SSE client disconnected")

	if err := writeSSEComment(res, "connected"); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(h.sseHeartbeat)
	defer heartbeat.Stop()

	done := c.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-sub.Done():
			return nil
		case <-heartbeat.C:
			if err := writeSSEComment(res, "ping"); err != nil {
				return nil
			}
		case n := <-sub.C():
			if err := writeSSEEvent(res, n); err != nil {
				logger.Debug("Failed to write SSE event: ", err)
				return nil
			}
		}
	}
}

func writeSSEComment(res *echo.Response, comment string) error {
	if _, err := fmt.Fprintf(res, ": %s\n\n", comment); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func writeSSEEvent(res *echo.Response, n notification.Notification) error {
	if err := formatSSEEvent(res, n); err != nil {
		return err
	}
	res.Flush()
	return nil
}

// formatSSEEvent writes one event frame. The payload is single-line JSON.
func formatSSEEvent(w io.Writer, n notification.Notification) error {
	data := n.Data
	if len(data) == 0 {
		data = []byte("null")
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Name, data)
	return err
}
