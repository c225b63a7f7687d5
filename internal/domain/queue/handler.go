package queue

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/seva/seva/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/queue", auth.RequireRole("admin", "coordinator", "reception"))
	g.POST("/check-in", h.CheckIn)
	g.POST("/emergencies", h.AdmitEmergency)
	g.GET("/providers/:id", h.ProviderSnapshot)
	g.POST("/providers/:id/next", h.StartNext)
	g.POST("/entries/:id/complete", h.CompleteEntry)
	g.POST("/entries/:id/cancel", h.CancelEntry)
	g.POST("/entries/:id/assign", h.AssignEmergency)
}

// rejectionBody is the JSON shape every refused admission returns.
type rejectionBody struct {
	Reason             RejectionReason `json:"reason"`
	Message            string          `json:"message"`
	WindowOpensAt      *time.Time      `json:"window_opens_at,omitempty"`
	WindowClosesAt     *time.Time      `json:"window_closes_at,omitempty"`
	ExistingEntryID    *uuid.UUID      `json:"existing_entry_id,omitempty"`
	ExistingProviderID *uuid.UUID      `json:"existing_provider_id,omitempty"`
	ExistingPosition   *int            `json:"existing_position,omitempty"`
}

// writeError maps the rejection taxonomy onto HTTP: window and duplicate
// conflicts are 409, unknown references 404, precondition failures 400.
// Anything that is not a rejection is a store failure and surfaces as 500.
func writeError(c echo.Context, err error) error {
	var rej *RejectionError
	if !errors.As(err, &rej) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusBadRequest
	switch rej.Reason {
	case ReasonTooEarly, ReasonTooLate, ReasonAlreadyQueued:
		status = http.StatusConflict
	case ReasonNotFound:
		status = http.StatusNotFound
	case ReasonInvalidState:
		status = http.StatusBadRequest
	}

	return c.JSON(status, rejectionBody{
		Reason:             rej.Reason,
		Message:            rej.Message,
		WindowOpensAt:      rej.WindowOpensAt,
		WindowClosesAt:     rej.WindowClosesAt,
		ExistingEntryID:    rej.ExistingEntryID,
		ExistingProviderID: rej.ExistingProviderID,
		ExistingPosition:   rej.ExistingPosition,
	})
}

// CheckIn admits a visitor through the self or assisted path.
func (h *Handler) CheckIn(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Mode == "" {
		req.Mode = ModeSelf
	}
	if req.Mode == ModeEmergency {
		return echo.NewHTTPError(http.StatusBadRequest, "use the emergencies endpoint for emergency admission")
	}

	result, err := h.svc.Admit(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// AdmitEmergency admits an emergency arrival, with or without a provider.
func (h *Handler) AdmitEmergency(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Mode = ModeEmergency

	result, err := h.svc.Admit(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// ProviderSnapshot returns the provider's live queue for display.
func (h *Handler) ProviderSnapshot(c echo.Context) error {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	entries, err := h.svc.Snapshot(c.Request().Context(), providerID)
	if err != nil {
		return writeError(c, err)
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// StartNext begins serving the provider's position-0 entry.
func (h *Handler) StartNext(c echo.Context) error {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	entry, err := h.svc.StartNext(c.Request().Context(), providerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) CompleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	if err := h.svc.Complete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignEmergency places an unassigned emergency onto a provider's queue.
func (h *Handler) AssignEmergency(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	var body struct {
		ProviderID uuid.UUID `json:"provider_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.ProviderID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "provider_id is required")
	}
	entry, err := h.svc.AssignEmergency(c.Request().Context(), id, body.ProviderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}
