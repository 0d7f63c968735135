package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"venus_app_echo/internal/models"
)

// Runner executes due scheduled tasks against a registry
type Runner struct {
	db       *gorm.DB
	registry *Registry
	now      func() time.Time
}

// NewRunner creates a new Runner
func NewRunner(db *gorm.DB, registry *Registry) *Runner {
	return &Runner{db: db, registry: registry, now: time.Now}
}

// Start runs once immediately and then on every tick until ctx is done
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.ProcessDue(ctx)
	for {
		select {
		case <-ticker.C:
			r.ProcessDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessDue runs every active task whose due time has passed and returns how many ran
func (r *Runner) ProcessDue(ctx context.Context) int {
	log.Debug().Msg("Checking for pending tasks")

	var pendingTasks []models.ScheduledTask
	now := r.now().UTC()
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ? AND active = ?", models.ScheduledTaskStatusActive, now, true).
		Order("due ASC").
		Find(&pendingTasks).Error
	if err != nil {
		log.Error().Err(err).Msg("Error fetching pending tasks")
		return 0
	}

	if len(pendingTasks) == 0 {
		log.Debug().Msg("No pending tasks found")
		return 0
	}

	log.Info().Int("count", len(pendingTasks)).Msg("Found pending tasks")

	ran := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return ran
		}
		r.executeTask(ctx, task)
		ran++
	}
	return ran
}

func (r *Runner) executeTask(ctx context.Context, task models.ScheduledTask) {
	logger := log.With().Str("task", task.TaskName).Uint("task_id", task.ID).Logger()
	logger.Info().Msg("Processing task")

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		logger.Warn().Msg("Task handler not found, marking as failure")

		now := r.now().UTC()
		r.db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		r.recordHistory(task, now, 0, "handler_not_found", 1, map[string]interface{}{"error": "Handler not found"})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = r.now().UTC()
		var result map[string]interface{}
		result, err = r.invoke(ctx, handler, task)
		runtimeMs := int(r.now().Sub(startTime).Milliseconds())

		if err == nil {
			logger.Info().Int("attempt", attempt).Msg("Task completed successfully")
			r.recordHistory(task, startTime, runtimeMs, "success", attempt, result)
			break
		}

		logger.Error().Err(err).Int("attempt", attempt).Msg("Task failed")
		r.recordHistory(task, startTime, runtimeMs, "failure", attempt, map[string]interface{}{"error": err.Error()})
	}

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	if err != nil {
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	} else {
		switch task.TaskType {
		case models.ScheduledTaskTypeRecurring:
			nextDue := task.NextDue(startTime)
			// only a strictly later occurrence keeps the task alive
			if nextDue.After(task.Due) {
				taskUpdates["status"] = models.ScheduledTaskStatusActive
				taskUpdates["due"] = nextDue
			} else {
				taskUpdates["status"] = models.ScheduledTaskStatusDone
			}
		default:
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		}
	}

	if err := r.db.Model(&task).Updates(taskUpdates).Error; err != nil {
		logger.Error().Err(err).Msg("Failed to update task state")
	}
}

// invoke shields the runner from handler panics
func (r *Runner) invoke(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError{value: p}
		}
	}()
	return handler(ctx, task)
}

type panicError struct{ value interface{} }

func (p panicError) Error() string {
	return "task panicked: " + toString(p.value)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	}
	return "unknown panic"
}

func (r *Runner) recordHistory(task models.ScheduledTask, runAt time.Time, runtimeMs int, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		RuntimeMs:       runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
		AuditFields:     models.NewAuditFields(models.ActorSystem),
	}
	if err := r.db.Create(&history).Error; err != nil {
		log.Error().Err(err).Str("task", task.TaskName).Msg("Failed to record task history")
	}
}
