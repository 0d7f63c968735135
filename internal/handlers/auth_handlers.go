package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

// AuthHandler handles registration, login and profile completion
type AuthHandler struct {
	users *services.UserService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	UserID      string          `json:"user_id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	Profile     *models.Profile `json:"profile"`
}

type completeProfileRequest struct {
	PhoneNumber string        `json:"phone_number"`
	Gender      models.Gender `json:"gender"`
	DateOfBirth string        `json:"date_of_birth"`
	Bio         string        `json:"bio"`
}

// Register creates an account
func (h *AuthHandler) Register(c echo.Context) error {
	var req services.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if !strings.Contains(req.Email, "@") || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return unprocessable("email, first_name, last_name and password are required")
	}

	user, err := h.users.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

// Login exchanges email and password for a bearer token
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return unprocessable("email and password are required")
	}

	res, err := h.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		UserID:      res.User.ID.String(),
		FirstName:   res.User.FirstName,
		LastName:    res.User.LastName,
		Email:       res.User.Email,
		Profile:     res.User.Profile,
	})
}

// CompleteProfile creates or updates the caller's profile
func (h *AuthHandler) CompleteProfile(c echo.Context) error {
	var req completeProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return unprocessable("phone_number is required")
	}
	if !req.Gender.Valid() {
		return unprocessable("gender must be MALE or FEMALE")
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return unprocessable("date_of_birth must be YYYY-MM-DD")
	}

	profile, err := h.users.CompleteProfile(c.Request().Context(), middleware.CurrentUser(c), services.CompleteProfileInput{
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Gender:      req.Gender,
		DateOfBirth: dob,
		Bio:         req.Bio,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, profile)
}

// parseDate accepts a calendar date or a full RFC3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
