package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stillpoint-yoga/studio/internal/dto"
	"github.com/stillpoint-yoga/studio/internal/media"
	"github.com/stillpoint-yoga/studio/internal/middleware"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/service"
)

const (
	defaultOccurrences = 8
	maxOccurrences     = 52
)

type ScheduleHandler struct {
	svc    service.ScheduleService
	images *media.Resolver
}

// NewScheduleHandler builds the class API. images may be nil to omit image URLs.
func NewScheduleHandler(svc service.ScheduleService, images *media.Resolver) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, images: images}
}

// RegisterRoutes mounts reads publicly and writes behind the admin middleware chain.
func (h *ScheduleHandler) RegisterRoutes(g *echo.Group, admin ...echo.MiddlewareFunc) {
	g.GET("", h.ListClasses)
	g.GET("/:id", h.GetClass)
	g.GET("/:id/occurrences", h.ListOccurrences)

	g.POST("", h.CreateClass, admin...)
	g.PUT("/:id", h.UpdateClass, admin...)
	g.DELETE("/:id", h.DeactivateClass, admin...)
}

func (h *ScheduleHandler) CreateClass(c echo.Context) error {
	req, err := bindClass(c)
	if err != nil {
		return err
	}

	class := req.ToModel()
	if err := h.svc.CreateClass(c.Request().Context(), class); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, h.toResponse(c, class))
}

func (h *ScheduleHandler) UpdateClass(c echo.Context) error {
	id, err := parseID(c, "class")
	if err != nil {
		return err
	}
	req, err := bindClass(c)
	if err != nil {
		return err
	}

	class, err := h.svc.UpdateClass(c.Request().Context(), id, req.ToModel())
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, h.toResponse(c, class))
}

func (h *ScheduleHandler) DeactivateClass(c echo.Context) error {
	id, err := parseID(c, "class")
	if err != nil {
		return err
	}

	class, err := h.svc.DeactivateClass(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, h.toResponse(c, class))
}

func (h *ScheduleHandler) GetClass(c echo.Context) error {
	id, err := parseID(c, "class")
	if err != nil {
		return err
	}

	class, err := h.svc.GetClass(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, h.toResponse(c, class))
}

// ListClasses lists active classes; admins may add ?all=true to include inactive ones.
func (h *ScheduleHandler) ListClasses(c echo.Context) error {
	includeInactive, _ := strconv.ParseBool(c.QueryParam("all"))
	if claims, ok := middleware.ClaimsFrom(c); !ok || !claims.IsAdmin() {
		includeInactive = false
	}

	classes, err := h.svc.ListClasses(c.Request().Context(), includeInactive)
	if err != nil {
		return toHTTPError(err)
	}

	resp := make([]dto.ClassResponse, len(classes))
	for i := range classes {
		resp[i] = h.toResponse(c, &classes[i])
	}
	return c.JSON(http.StatusOK, resp)
}

// ListOccurrences returns upcoming bookable dates; ?from=YYYY-MM-DD&limit=N.
func (h *ScheduleHandler) ListOccurrences(c echo.Context) error {
	id, err := parseID(c, "class")
	if err != nil {
		return err
	}

	from := time.Now().UTC()
	if raw := c.QueryParam("from"); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
	}
	limit := defaultOccurrences
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxOccurrences)
	}

	dates, err := h.svc.Occurrences(c.Request().Context(), id, from, limit)
	if err != nil {
		return toHTTPError(err)
	}

	resp := dto.OccurrencesResponse{ClassID: id, Dates: make([]string, len(dates))}
	for i, d := range dates {
		resp.Dates[i] = d.Format(models.DateLayout)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ScheduleHandler) toResponse(c echo.Context, class *models.ClassSchedule) dto.ClassResponse {
	var urls []string
	if h.images != nil && class.ImageKey != "" {
		urls = h.images.URLs(class.ImageKey, c.Request().Header.Get(media.ViewerCountryHeader))
	}
	return dto.ToClassResponse(class, urls)
}

func bindClass(c echo.Context) (*dto.ClassRequest, error) {
	var req dto.ClassRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}
