package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo"
	"github.com/nsyszr/eventhub/pkg/api/resource"
	"github.com/nsyszr/eventhub/pkg/service"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// handleError turns every handler error into an ErrorResource.
func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var out *resource.ErrorResource

	var notFound *service.NotFoundError
	var invalid *service.ValidationError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &notFound):
		out = resource.NewError(http.StatusNotFound, notFound.Error())
	case errors.As(err, &invalid):
		out = resource.NewError(http.StatusBadRequest, "Validation failed")
		out.Errors = invalid.Fields
	case errors.As(err, &httpErr):
		out = resource.NewError(httpErr.Code, fmt.Sprintf("%v", httpErr.Message))
	default:
		log.WithField("uri", c.Request().RequestURI).Error("Unhandled error: ", err)
		out = resource.NewError(http.StatusInternalServerError, unexpectedErrorMessage)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(out.Status)
	} else {
		err = c.JSON(out.Status, out)
	}
	if err != nil {
		log.Error("Failed to send error response: ", err)
	}
}
