package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stillpoint-yoga/studio/internal/auth"
	"github.com/stillpoint-yoga/studio/internal/dto"
	"github.com/stillpoint-yoga/studio/internal/middleware"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/service"
)

type BookingHandler struct {
	svc service.BookingService
}

func NewBookingHandler(svc service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// RegisterRoutes mounts the booking API on an authenticated group.
func (h *BookingHandler) RegisterRoutes(g *echo.Group) {
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	classes := g.Group("/classes")
	classes.POST("/:id/book", h.BookClass)
	classes.GET("/:id/status", h.GetOccupancy)
	classes.GET("/:id/bookings", h.ListClassBookings, adminOnly)

	bookings := g.Group("/bookings")
	bookings.GET("", h.ListBookings)
	bookings.GET("/:id", h.GetBooking)
	bookings.PUT("/:id", h.UpdateBooking)
	bookings.DELETE("/:id", h.CancelBooking)

	g.DELETE("/admin/bookings/:id", h.DeleteBooking, adminOnly)
}

func (h *BookingHandler) BookClass(c echo.Context) error {
	claims, err := requireClaims(c)
	if err != nil {
		return err
	}
	classID, err := parseID(c, "class")
	if err != nil {
		return err
	}

	var req dto.BookClassRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	booking, err := h.svc.RequestBooking(c.Request().Context(), claims.UserID(), classID, date)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	booking, err := h.ownedBooking(c)
	if err != nil {
		return err
	}

	booking, err = h.svc.CancelBooking(c.Request().Context(), booking.ID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

// UpdateBooking applies a status change. Members may only cancel; attendance is admin only.
func (h *BookingHandler) UpdateBooking(c echo.Context) error {
	var req dto.UpdateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	booking, err := h.ownedBooking(c)
	if err != nil {
		return err
	}
	if req.Status != models.StatusCancelled {
		if claims, _ := middleware.ClaimsFrom(c); !claims.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "only staff can record attendance")
		}
	}

	booking, err = h.svc.UpdateStatus(c.Request().Context(), booking.ID, req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	booking, err := h.ownedBooking(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) DeleteBooking(c echo.Context) error {
	id, err := parseID(c, "booking")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBooking(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBookings returns the caller's bookings, or a class roster when class_id and date are given.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	claims, err := requireClaims(c)
	if err != nil {
		return err
	}

	if raw := c.QueryParam("class_id"); raw != "" {
		if !claims.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
		classID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid class id")
		}
		date, err := queryDate(c)
		if err != nil {
			return err
		}
		return h.roster(c, uint(classID), date)
	}

	userID := claims.UserID()
	if other := c.QueryParam("user_id"); other != "" && claims.IsAdmin() {
		userID = other
	}
	bookings, err := h.svc.ListUserBookings(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponses(bookings))
}

func (h *BookingHandler) ListClassBookings(c echo.Context) error {
	classID, err := parseID(c, "class")
	if err != nil {
		return err
	}
	date, err := queryDate(c)
	if err != nil {
		return err
	}
	return h.roster(c, classID, date)
}

func (h *BookingHandler) GetOccupancy(c echo.Context) error {
	classID, err := parseID(c, "class")
	if err != nil {
		return err
	}
	date, err := queryDate(c)
	if err != nil {
		return err
	}

	occ, err := h.svc.GetOccupancy(c.Request().Context(), classID, date)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, occ)
}

func (h *BookingHandler) roster(c echo.Context, classID uint, date time.Time) error {
	bookings, err := h.svc.ListBookingsForClass(c.Request().Context(), classID, date)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponses(bookings))
}

// ownedBooking loads the booking in the path and checks the caller may act on it.
func (h *BookingHandler) ownedBooking(c echo.Context) (*models.Booking, error) {
	claims, err := requireClaims(c)
	if err != nil {
		return nil, err
	}
	id, err := parseID(c, "booking")
	if err != nil {
		return nil, err
	}

	booking, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if booking.UserID != claims.UserID() && !claims.IsAdmin() {
		return nil, echo.NewHTTPError(http.StatusForbidden, "booking belongs to another member")
	}
	return booking, nil
}

func requireClaims(c echo.Context) (auth.Claims, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return auth.Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	return claims, nil
}

func queryDate(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return date, nil
}

func toBookingResponses(bookings []models.Booking) []dto.BookingResponse {
	resp := make([]dto.BookingResponse, len(bookings))
	for i := range bookings {
		resp[i] = dto.ToBookingResponse(&bookings[i])
	}
	return resp
}
