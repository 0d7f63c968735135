package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"venus_app_echo/internal/config"
	"venus_app_echo/internal/logger"
	"venus_app_echo/internal/services"
	"venus_app_echo/internal/tasks"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, logger.GormLogLevel(cfg.LogLevel))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := services.NewNotifier(nil)
	if client, err := services.InitMessaging(ctx, cfg.FirebaseCredentialsPath); err != nil {
		log.Warn().Err(err).Msg("Firebase initialization failed, reminders will be skipped")
	} else {
		notifier = services.NewNotifier(client)
	}

	// Initialize Task Registry
	tasks.DefineTasks(tasks.GlobalRegistry, tasks.Dependencies{
		DB:       db,
		Payments: services.NewPaymentService(db, nil, notifier, nil),
		Notifier: notifier,
	})

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("Shutting down worker...")
		cancel()
	}()

	log.Info().
		Dur("interval", cfg.WorkerInterval).
		Strs("tasks", tasks.GlobalRegistry.Names()).
		Msg("Worker started")

	tasks.NewRunner(db, tasks.GlobalRegistry).Start(ctx, cfg.WorkerInterval)
}
