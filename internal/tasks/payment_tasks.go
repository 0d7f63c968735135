package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

// ExpirePaymentsTaskDef marks payments past their validity window as expired
type ExpirePaymentsTaskDef struct {
	payments *services.PaymentService
	now      func() time.Time
}

// TaskID returns the unique identifier for this task
func (t *ExpirePaymentsTaskDef) TaskID() string {
	return "expire_payments"
}

// HandleExecution stamps expired_at on every lapsed payment
func (t *ExpirePaymentsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	now := time.Now()
	if t.now != nil {
		now = t.now()
	}

	expired, err := t.payments.ExpireLapsed(ctx, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to expire payments: %w", err)
	}

	log.Info().Int64("expired", expired).Msg("Lapsed payments expired")
	return map[string]interface{}{
		"status":  "success",
		"expired": expired,
	}, nil
}
