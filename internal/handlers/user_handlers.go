package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/services"
)

// UserHandler serves the caller's own account
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the current user with their profile
func (h *UserHandler) Me(c echo.Context) error {
	user, err := h.users.GetWithProfile(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateMe changes names, avatar or push token
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req services.UpdateSelfInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}

	user, err := h.users.UpdateSelf(c.Request().Context(), middleware.CurrentUser(c), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
