package tasks

import (
	"gorm.io/gorm"

	"venus_app_echo/internal/services"
)

// Dependencies are the services task handlers run against
type Dependencies struct {
	DB       *gorm.DB
	Payments *services.PaymentService
	Notifier *services.Notifier
}

// DefineTasks registers all available tasks on r
func DefineTasks(r *Registry, deps Dependencies) {
	// general
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// payments
	expire := &ExpirePaymentsTaskDef{payments: deps.Payments}
	r.Register(expire.TaskID(), expire.HandleExecution)

	// notifications
	reminder := &SubscriptionReminderTaskDef{db: deps.DB, payments: deps.Payments, notifier: deps.Notifier}
	r.Register(reminder.TaskID(), reminder.HandleExecution)
}
