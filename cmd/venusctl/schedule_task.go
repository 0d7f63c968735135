package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/tasks"
)

type scheduleOptions struct {
	taskName   string
	arguments  string
	due        string
	taskType   string
	recurring  string
	maxAttempt int
}

func scheduleTaskCmd() *cobra.Command {
	opts := &scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule-task",
		Short: "Persist a task for the worker to run",
		Long: `Persist a scheduled task for the worker.

Examples:
  venusctl schedule-task --task-name expire_payments --arguments '{}' --due "2024-06-01 00:00" \
    --tasktype recurring --recurring "FREQ=DAILY;INTERVAL=1"
  venusctl schedule-task --task-name subscription_reminder --arguments '{"days_ahead":3}' --due 2024-06-01T09:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := opts.build()
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := db.Create(task).Error; err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			fmt.Printf("Successfully created task ID: %d\n", task.ID)
			fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.taskName, "task-name", "", "name of the registered task (required)")
	cmd.Flags().StringVar(&opts.arguments, "arguments", "{}", "JSON arguments for the task")
	cmd.Flags().StringVar(&opts.due, "due", "", "due time, RFC3339 or '2006-01-02 15:04' local (required)")
	cmd.Flags().StringVar(&opts.taskType, "tasktype", string(models.ScheduledTaskTypeOneTime), "onetime or recurring")
	cmd.Flags().StringVar(&opts.recurring, "recurring", "", "RRULE for recurring tasks, e.g. FREQ=DAILY;INTERVAL=1")
	cmd.Flags().IntVar(&opts.maxAttempt, "max-attempt", 3, "attempts per run")
	_ = cmd.MarkFlagRequired("task-name")
	_ = cmd.MarkFlagRequired("due")

	return cmd
}

// build validates the flags and returns the task to insert
func (o *scheduleOptions) build() (*models.ScheduledTask, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(o.arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}

	due, err := parseDue(o.due)
	if err != nil {
		return nil, err
	}

	taskType := models.ScheduledTaskType(o.taskType)
	var recurring *string
	switch taskType {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if o.recurring == "" {
			return nil, fmt.Errorf("--recurring is required for recurring tasks")
		}
		recurring = &o.recurring
	default:
		return nil, fmt.Errorf("unknown task type %q", o.taskType)
	}

	return tasks.BuildScheduledTask(o.taskName, args, due, recurring, taskType, o.maxAttempt)
}

// parseDue accepts RFC3339 or a local "2006-01-02 15:04" timestamp
func parseDue(s string) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date format, use '2006-01-02 15:04' (local) or RFC3339: %w", err)
	}
	return due, nil
}
