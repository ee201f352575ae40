package api

import (
	"time"

	"github.com/labstack/echo"
	"github.com/nsyszr/eventhub/pkg/notification"
	"github.com/nsyszr/eventhub/pkg/service"
	log "github.com/sirupsen/logrus"
)

// DefaultSSEHeartbeat is the interval of SSE keep-alive comments.
const DefaultSSEHeartbeat = 30 * time.Second

// Handler contains all properties to serve the API
type Handler struct {
	svc          *service.EventService
	hub          *notification.Hub
	sseHeartbeat time.Duration
	version      string
}

// NewHandler create a new API handler
func NewHandler(svc *service.EventService, hub *notification.Hub, sseHeartbeat time.Duration, version string) *Handler {
	if sseHeartbeat <= 0 {
		sseHeartbeat = DefaultSSEHeartbeat
	}
	return &Handler{
		svc:          svc,
		hub:          hub,
		sseHeartbeat: sseHeartbeat,
		version:      version,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register API routes")

	e.HTTPErrorHandler = h.handleError

	e.GET("/", h.handleRoot)
	e.GET("/health", h.handleHealth)

	api := e.Group("/api/events")
	api.POST("", h.handleCreateEvent)
	api.GET("", h.handleFetchEvents)
	api.DELETE("", h.handleDeleteEvents)
	api.GET("/stats", h.handleGetStats)
	api.GET("/status/:status", h.handleFetchEventsByStatus)
	api.GET("/subscribe", h.handleSubscribe)
	api.GET("/ws", h.realtimeEventsHandler())
	api.GET("/:id", h.handleGetEventByID)
}
