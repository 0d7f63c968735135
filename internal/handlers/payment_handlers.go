package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/services"
)

const maxCallbackBytes = 1 << 20

// PaymentHandler serves payment CRUD, STK initiation and the Daraja webhook
type PaymentHandler struct {
	payments *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func bindPayment(c echo.Context) (services.PaymentInput, error) {
	var req services.PaymentInput
	if err := c.Bind(&req); err != nil {
		return req, badRequest("Invalid request body")
	}
	if req.PlanID == uuid.Nil {
		return req, unprocessable("plan_id is required")
	}
	if req.Amount <= 0 {
		return req, unprocessable("amount must be positive")
	}
	return req, nil
}

// CreatePayment records a payment and pushes an STK prompt when a phone number is given
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	req, err := bindPayment(c)
	if err != nil {
		return err
	}

	payment, err := h.payments.Create(c.Request().Context(), middleware.CurrentUser(c), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, payment)
}

// InitiateSTK is CreatePayment with a mandatory phone number
func (h *PaymentHandler) InitiateSTK(c echo.Context) error {
	req, err := bindPayment(c)
	if err != nil {
		return err
	}

	payment, err := h.payments.InitiateSTK(c.Request().Context(), middleware.CurrentUser(c), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, payment)
}

// ListPayments returns the caller's active payments
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	payments, err := h.payments.List(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, payments)
}

// GetPayment returns one payment owned by the caller
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return unprocessable("Invalid payment id")
	}

	payment, err := h.payments.Get(c.Request().Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, payment)
}

// PatchPayment applies a partial update to a payment owned by the caller
func (h *PaymentHandler) PatchPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return unprocessable("Invalid payment id")
	}

	var req services.PaymentPatch
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}

	payment, err := h.payments.Patch(c.Request().Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, payment)
}

// Callback receives the Daraja STK result. It is unauthenticated; the
// correlation id is the only link to a payment.
func (h *PaymentHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBytes))
	if err != nil {
		return callbackError(c, http.StatusBadRequest, "Unable to read callback body")
	}
	log.Debug().Bytes("body", raw).Msg("Received Daraja callback")

	cb, err := services.ParseCallback(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Rejecting malformed Daraja callback")
		return callbackError(c, http.StatusBadRequest, "Invalid callback payload")
	}

	outcome, payment, err := h.payments.ResolveFromWebhook(ctx, cb, raw)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrMalformedEvent):
		h.payments.RecordCallback(ctx, cb, raw, "malformed")
		return callbackError(c, http.StatusBadRequest, "CheckoutRequestID not found")
	case errors.Is(err, services.ErrNotFound):
		log.Error().Str("checkout_request_id", cb.CheckoutRequestID).Msg("Payment not found for CheckoutRequestID")
		h.payments.RecordCallback(ctx, cb, raw, "not_found")
		return callbackError(c, http.StatusNotFound, "Payment not found")
	default:
		log.Error().Err(err).Str("checkout_request_id", cb.CheckoutRequestID).Msg("Error processing Daraja callback")
		h.payments.RecordCallback(ctx, cb, raw, "error")
		return callbackError(c, http.StatusInternalServerError, "Error processing callback: "+err.Error())
	}

	h.payments.RecordCallback(ctx, cb, raw, string(outcome))

	if outcome == services.WebhookDeclined {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "received",
			"result_code": cb.ResultCode,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "success",
		"payment_id": payment.ID,
	})
}

func callbackError(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{
		"status":  "error",
		"message": message,
	})
}
