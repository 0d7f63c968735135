package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

// ProfileHandler serves location updates and the map view
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type locationRequest struct {
	ProfileID   uuid.UUID `json:"profile_id"`
	Coordinates string    `json:"coordinates"`
}

type mapProfile struct {
	ProfileID          uuid.UUID     `json:"profile_id"`
	Gender             models.Gender `json:"gender"`
	Bio                string        `json:"bio"`
	Online             bool          `json:"online"`
	CurrentCoordinates *string       `json:"current_coordinates"`
}

type mapUser struct {
	UserID    uuid.UUID   `json:"user_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	AvatarURL *string     `json:"avatar_url"`
	Profile   *mapProfile `json:"profile"`
}

// UpdateLocation stores new coordinates on the caller's profile
func (h *ProfileHandler) UpdateLocation(c echo.Context) error {
	var req locationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.ProfileID == uuid.Nil {
		return unprocessable("profile_id is required")
	}

	err := h.profiles.UpdateLocation(c.Request().Context(), middleware.CurrentUser(c), req.ProfileID, req.Coordinates)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "You can only update your own profile location")
	default:
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "location_updated"})
}

// Map lists nearby users who fit the caller's preferences
func (h *ProfileHandler) Map(c echo.Context) error {
	users, err := h.profiles.MapProfiles(c.Request().Context(), middleware.CurrentUser(c))
	if err != nil {
		return httpError(err)
	}

	out := make([]mapUser, 0, len(users))
	for _, u := range users {
		item := mapUser{
			UserID:    u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			AvatarURL: u.AvatarURL,
		}
		if p := u.Profile; p != nil {
			item.Profile = &mapProfile{
				ProfileID:          p.ID,
				Gender:             p.Gender,
				Bio:                p.Bio,
				Online:             p.Online,
				CurrentCoordinates: p.CurrentCoordinates,
			}
		}
		out = append(out, item)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"map_profiles": out})
}
