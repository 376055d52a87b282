package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/stillpoint-yoga/studio/internal/service"
)

// toHTTPError maps service errors onto HTTP status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrClassNotFound), errors.Is(err, service.ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyBooked), errors.Is(err, service.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidOccurrence),
		errors.Is(err, service.ErrBookingClosed),
		errors.Is(err, service.ErrInvalidSchedule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPersistence):
		log.Printf("[Handler] %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, service.ErrPersistence.Error())
	default:
		log.Printf("[Handler] unexpected error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func parseID(c echo.Context, what string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+what+" id")
	}
	return uint(id), nil
}
