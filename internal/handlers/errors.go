package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/services"
)

// httpError maps a service error onto the response the API exposes.
// Unknown errors are returned untouched and end up as a 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found").SetInternal(err)
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Not allowed to modify this resource").SetInternal(err)
	case errors.Is(err, services.ErrInvalidPlan):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid plan_id or plan is not active").SetInternal(err)
	case errors.Is(err, services.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered").SetInternal(err)
	case errors.Is(err, services.ErrPhoneTaken):
		return echo.NewHTTPError(http.StatusConflict, "Phone number already registered").SetInternal(err)
	case errors.Is(err, services.ErrInvalidCoordinates):
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			"Invalid coordinates format. Expected format: 'lat,lng' (e.g. '-1.2921,36.8219')").SetInternal(err)
	case errors.Is(err, services.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password").SetInternal(err)
	case errors.Is(err, services.ErrInactiveUser):
		return echo.NewHTTPError(http.StatusBadRequest, "Inactive user").SetInternal(err)
	case errors.Is(err, services.ErrUnsupportedFileType):
		return echo.NewHTTPError(http.StatusBadRequest,
			"File type not allowed. Allowed types: gif, jpeg, jpg, png").SetInternal(err)
	case errors.Is(err, services.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, "File size exceeds maximum allowed size").SetInternal(err)
	case errors.Is(err, services.ErrMissingPhone):
		return echo.NewHTTPError(http.StatusBadRequest, "phone_number is required to initiate STK push").SetInternal(err)
	}
	return err
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

func unprocessable(message string) error {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, message)
}
