package api

import (
	"net/http"

	"github.com/labstack/echo"
)

func (h *Handler) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":        "EventHub API",
		"version":     h.version,
		"status":      "running",
		"description": "Event-driven processing hub",
		"_links": map[string]string{
			"health":    "/health",
			"events":    "/api/events",
			"stats":     "/api/events/stats",
			"subscribe": "/api/events/subscribe",
			"websocket": "/api/events/ws",
		},
	})
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "UP"})
}
