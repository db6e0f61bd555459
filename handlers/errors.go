package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"supportdesk/services"
)

// jsonError maps the service error taxonomy onto HTTP statuses. All of
// these are expected outcomes of concurrent operation, not failures.
func jsonError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrAttendantNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrAlreadyRated):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrRoomClosed):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrRateLimited):
		status = http.StatusTooManyRequests
		message = err.Error()
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidLogin):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, services.ErrNoAttendant):
		status = http.StatusServiceUnavailable
		message = err.Error()
	}

	return c.JSON(status, map[string]string{"error": message})
}
