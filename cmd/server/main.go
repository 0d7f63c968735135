package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"venus_app_echo/internal/config"
	"venus_app_echo/internal/handlers"
	"venus_app_echo/internal/logger"
	authMiddleware "venus_app_echo/internal/middleware"
	"venus_app_echo/internal/services"
	"venus_app_echo/internal/tasks"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, logger.GormLogLevel(cfg.LogLevel))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Redis is optional; without it plan lists and Daraja tokens are not cached
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, caching disabled")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Initialize Firebase
	var notifier *services.Notifier
	messagingClient, err := services.InitMessaging(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Warn().Err(err).Msg("Firebase initialization failed, push notifications disabled")
		notifier = services.NewNotifier(nil)
	} else {
		notifier = services.NewNotifier(messagingClient)
	}

	dispatcher := tasks.NewDispatcher(cfg.NotifyWorkers, cfg.NotifyQueueSize)

	var initiator services.PushPaymentInitiator
	daraja := services.NewDarajaClient(cfg.Daraja, cache)
	if daraja.Configured() {
		initiator = daraja
	} else {
		log.Warn().Msg("Daraja credentials missing, STK push disabled")
	}

	s3Client, err := services.NewS3Client(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 client")
	}

	users := services.NewUserService(db, cfg.JWTSecret, cfg.TokenTTL)
	payments := services.NewPaymentService(db, initiator, notifier, dispatcher)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.JSONErrorHandler

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(logger.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handlers.RegisterRoutes(e, handlers.Handlers{
		Auth:     handlers.NewAuthHandler(users),
		Users:    handlers.NewUserHandler(users),
		Profiles: handlers.NewProfileHandler(services.NewProfileService(db)),
		Matches:  handlers.NewMatchHandler(services.NewMatchService(db, notifier, dispatcher)),
		Plans:    handlers.NewPlanHandler(services.NewPlanService(db, cache)),
		Payments: handlers.NewPaymentHandler(payments),
		Photos:   handlers.NewPhotoHandler(services.NewPhotoService(db, s3Client, cfg.AWS), cfg.AWS.MaxPhotoSizeMB),
	}, users, handlers.RateLimits{
		Login:   cfg.LoginRateLimit,
		Webhook: cfg.WebhookRateLimit,
	})

	// Start server
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// pending notifications are delivered before exit
	dispatcher.Close()
	log.Info().Msg("Server stopped")
}
