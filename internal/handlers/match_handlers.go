package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/services"
)

// MatchHandler serves match upsert and listing
type MatchHandler struct {
	matches *services.MatchService
}

// NewMatchHandler creates a new MatchHandler
func NewMatchHandler(matches *services.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// Upsert creates the thread record or overwrites its last message.
// Both paths answer 201.
func (h *MatchHandler) Upsert(c echo.Context) error {
	var req services.MatchUpsertInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.MyID == uuid.Nil || req.PartnerID == uuid.Nil || req.ThreadID == uuid.Nil {
		return unprocessable("my_id, partner_id and thread_id are required")
	}

	match, _, err := h.matches.Upsert(c.Request().Context(), middleware.CurrentUser(c), req)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, "my_id must match the authenticated user")
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, match)
}

// List returns every active match the caller takes part in
func (h *MatchHandler) List(c echo.Context) error {
	matches, err := h.matches.ListForUser(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, matches)
}
