package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo"
	"github.com/nsyszr/eventhub/pkg/api/resource"
	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/service"
)

func (h *Handler) handleCreateEvent(c echo.Context) error {
	r := &resource.CreateEventResource{}
	if err := c.Bind(r); err != nil {
		return err
	}

	m, err := h.svc.CreateEvent(c.Request().Context(), &service.CreateEventRequest{
		Title:       r.Title,
		Description: r.Description,
		Source:      r.Source,
		Type:        r.Type,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, resource.NewEvent(m))
}

func (h *Handler) handleFetchEvents(c echo.Context) error {
	m, err := h.svc.GetAllEvents(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resource.NewEventList(m))
}

func (h *Handler) handleGetEventByID(c echo.Context) error {
	idParam := c.Param("id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid event id: %s", idParam))
	}

	m, err := h.svc.GetEventByID(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resource.NewEvent(m))
}

func (h *Handler) handleFetchEventsByStatus(c echo.Context) error {
	statusParam := c.Param("status")
	status, err := model.ParseEventStatus(statusParam)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid status: %s", statusParam))
	}

	m, err := h.svc.GetEventsByStatus(c.Request().Context(), status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resource.NewEventList(m))
}

func (h *Handler) handleGetStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &resource.StatsResource{
		Total:         stats.Total,
		Pending:       stats.Pending,
		Processing:    stats.Processing,
		Processed:     stats.Processed,
		Failed:        stats.Failed,
		BrokerEnabled: stats.BrokerEnabled,
	})
}

func (h *Handler) handleDeleteEvents(c echo.Context) error {
	if err := h.svc.DeleteAllEvents(c.Request().Context()); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
