package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

const defaultReminderDaysAhead = 3

// SubscriptionReminderArgs defines the arguments for a reminder run
type SubscriptionReminderArgs struct {
	DaysAhead    int      `json:"days_ahead"`
	PaymentIDs   []string `json:"payment_ids,omitempty"`
	AttemptCount int      `json:"attempt_count"`
}

// SubscriptionReminderTaskDef pushes a reminder to subscribers whose plan lapses soon
type SubscriptionReminderTaskDef struct {
	db       *gorm.DB
	payments *services.PaymentService
	notifier *services.Notifier
	now      func() time.Time
}

// TaskID returns the unique identifier for this task
func (t *SubscriptionReminderTaskDef) TaskID() string {
	return "subscription_reminder"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SubscriptionReminderTaskDef) CreateTask(args SubscriptionReminderArgs, due time.Time, maxAttempt int) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, maxAttempt)
}

func (t *SubscriptionReminderTaskDef) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// HandleExecution sends one reminder per expiring payment. Payments that fail
// delivery are rescheduled as a follow-up task until max_attempt is reached.
func (t *SubscriptionReminderTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args SubscriptionReminderArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}
	if args.DaysAhead <= 0 {
		args.DaysAhead = defaultReminderDaysAhead
	}

	now := t.clock().UTC()
	expiring, err := t.payments.ExpiringBetween(ctx, now, now.AddDate(0, 0, args.DaysAhead))
	if err != nil {
		return nil, fmt.Errorf("failed to load expiring payments: %w", err)
	}
	expiring = onlyIDs(expiring, args.PaymentIDs)

	tokens, err := t.payerTokens(ctx, expiring)
	if err != nil {
		return nil, err
	}

	successCount := 0
	skippedCount := 0
	var failed []string

	for i := range expiring {
		payment := &expiring[i]
		token := tokens[payment.UserID]
		if token == "" {
			skippedCount++
			continue
		}
		if t.notifier.SendSubscriptionReminder(ctx, payment, token) {
			successCount++
		} else {
			failed = append(failed, payment.ID.String())
		}
	}

	result := map[string]interface{}{
		"total":   len(expiring),
		"success": successCount,
		"skipped": skippedCount,
		"failure": len(failed),
	}

	if len(failed) == 0 {
		return result, nil
	}

	if args.AttemptCount+1 < task.MaxAttempt {
		retry := SubscriptionReminderArgs{
			DaysAhead:    args.DaysAhead,
			PaymentIDs:   failed,
			AttemptCount: args.AttemptCount + 1,
		}
		newTask, err := t.CreateTask(retry, now.Add(5*time.Minute), task.MaxAttempt)
		if err == nil {
			err = t.db.WithContext(ctx).Create(newTask).Error
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to create reminder retry task")
		} else {
			log.Warn().Int("failed", len(failed)).Int("attempt", retry.AttemptCount+1).Msg("Partial failure, reminder rescheduled")
		}
		return result, nil
	}

	log.Warn().Int("max_attempt", task.MaxAttempt).Int("failed", len(failed)).Msg("Max attempts reached for reminders")
	return result, fmt.Errorf("max attempts reached, failed to deliver to %d subscribers", len(failed))
}

func (t *SubscriptionReminderTaskDef) payerTokens(ctx context.Context, payments []models.Payment) (map[uuid.UUID]string, error) {
	tokens := make(map[uuid.UUID]string)
	if len(payments) == 0 {
		return tokens, nil
	}

	ids := make([]uuid.UUID, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.UserID)
	}

	var users []models.User
	if err := t.db.WithContext(ctx).Select("user_id", "fcm_token").Where("user_id IN ? AND active = ?", ids, true).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}
	for i := range users {
		tokens[users[i].ID] = users[i].PushToken()
	}
	return tokens, nil
}

func onlyIDs(payments []models.Payment, ids []string) []models.Payment {
	if len(ids) == 0 {
		return payments
	}
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := payments[:0]
	for _, p := range payments {
		if keep[p.ID.String()] {
			out = append(out, p)
		}
	}
	return out
}
