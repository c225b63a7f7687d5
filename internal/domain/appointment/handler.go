package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/seva/seva/internal/platform/auth"
	"github.com/seva/seva/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "coordinator", "reception"))
	readGroup.GET("/appointments/:id", h.Get)
	readGroup.GET("/appointments", h.List)

	writeGroup := api.Group("", auth.RequireRole("admin", "coordinator", "reception"))
	writeGroup.POST("/appointments", h.Book)
	writeGroup.POST("/appointments/:id/confirm", h.Confirm)
	writeGroup.POST("/appointments/:id/cancel", h.Cancel)
	writeGroup.POST("/appointments/:id/no-show", h.MarkNoShow)
}

func (h *Handler) Book(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Book(c.Request().Context(), &a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if visitorID := c.QueryParam("visitor_id"); visitorID != "" {
		vid, err := uuid.Parse(visitorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid visitor_id")
		}
		items, total, err := h.svc.ListByVisitor(ctx, vid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	providerID := c.QueryParam("provider_id")
	if providerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "provider_id or visitor_id is required")
	}
	pid, err := uuid.Parse(providerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
	}

	day := time.Now()
	if d := c.QueryParam("day"); d != "" {
		day, err = time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid day, expected YYYY-MM-DD")
		}
	}

	items, total, err := h.svc.ListByProviderDay(ctx, pid, day, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, h.svc.Confirm)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.transition(c, h.svc.MarkNoShow)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := fn(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
