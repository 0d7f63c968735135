package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

// PlanHandler serves subscription plan endpoints
type PlanHandler struct {
	plans *services.PlanService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(plans *services.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// CreatePlan stores a new subscription tier
func (h *PlanHandler) CreatePlan(c echo.Context) error {
	var req services.PlanInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if !req.Plan.Valid() {
		return unprocessable("plan must be one of MONTHLY, SEMI_ANNUAL, ANNUAL, VIP, TEST")
	}
	if req.Amount <= 0 || req.Months <= 0 {
		return unprocessable("amount and months must be positive")
	}

	actor := middleware.CurrentUser(c)
	plan, err := h.plans.Create(c.Request().Context(), models.ActorUser(actor.ID), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, plan)
}

// ListPlans returns the active plans, cheapest first
func (h *PlanHandler) ListPlans(c echo.Context) error {
	plans, err := h.plans.ListActive(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plans)
}

type planActiveRequest struct {
	Active *bool `json:"active"`
}

// SetPlanActive enables or retires a plan
func (h *PlanHandler) SetPlanActive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return unprocessable("Invalid plan id")
	}

	var req planActiveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.Active == nil {
		return unprocessable("active is required")
	}

	actor := middleware.CurrentUser(c)
	plan, err := h.plans.SetActive(c.Request().Context(), models.ActorUser(actor.ID), id, *req.Active)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plan)
}
