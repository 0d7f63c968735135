package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"venus_app_echo/internal/middleware"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes
type Handlers struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Profiles *ProfileHandler
	Matches  *MatchHandler
	Plans    *PlanHandler
	Payments *PaymentHandler
	Photos   *PhotoHandler
}

// RateLimits are requests per second per client IP. Zero disables the limiter.
type RateLimits struct {
	Login   float64
	Webhook float64
}

// Health reports liveness
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// RegisterRoutes mounts the API under /api/v1
func RegisterRoutes(e *echo.Echo, h Handlers, auth middleware.Authenticator, limits RateLimits) {
	e.GET("/health", Health)

	api := e.Group("/api/v1")
	api.GET("/health", Health)

	requireAuth := middleware.RequireAuth(auth)

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login, rateLimit(limits.Login)...)
	authGroup.POST("/profile/complete", h.Auth.CompleteProfile, requireAuth)

	// User routes
	users := api.Group("/users", requireAuth)
	users.GET("/me", h.Users.Me)
	users.PATCH("/me", h.Users.UpdateMe)

	// Profile routes
	profiles := api.Group("/profiles", requireAuth)
	profiles.POST("/location", h.Profiles.UpdateLocation)
	profiles.GET("/map", h.Profiles.Map)

	// Match routes
	matches := api.Group("/matches", requireAuth)
	matches.POST("", h.Matches.Upsert)
	matches.GET("", h.Matches.List)

	// Plan routes
	api.GET("/payment-plans", h.Plans.ListPlans)
	api.POST("/payment-plans", h.Plans.CreatePlan, requireAuth)
	api.PATCH("/payment-plans/:id", h.Plans.SetPlanActive, requireAuth)

	// Payment routes. The webhook is public and registered before /:id.
	api.POST("/payments/callback", h.Payments.Callback, rateLimit(limits.Webhook)...)
	payments := api.Group("/payments", requireAuth)
	payments.POST("", h.Payments.CreatePayment)
	payments.POST("/initiate-stk", h.Payments.InitiateSTK)
	payments.GET("", h.Payments.ListPayments)
	payments.GET("/:id", h.Payments.GetPayment)
	payments.PATCH("/:id", h.Payments.PatchPayment)

	// Photo routes
	photos := api.Group("/photos", requireAuth)
	photos.POST("", h.Photos.Upload, h.Photos.BodyLimit())
	photos.GET("", h.Photos.List)
}

func rateLimit(perSecond float64) []echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}

	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})

	return []echo.MiddlewareFunc{echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		},
	})}
}
