package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

const userContextKey = "user"

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth returns a middleware that verifies the bearer JWT and stores the
// principal in the echo context
func RequireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return unauthorized()
			}

			user, err := auth.Authenticate(c.Request().Context(), strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, services.ErrInactiveUser) {
					return echo.NewHTTPError(http.StatusForbidden, "Inactive user")
				}
				if errors.Is(err, services.ErrInvalidCredentials) {
					return unauthorized()
				}
				return err
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

func unauthorized() error {
	he := echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	he.SetInternal(errors.New("missing or invalid bearer token"))
	return he
}

// CurrentUser returns the principal set by RequireAuth
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
