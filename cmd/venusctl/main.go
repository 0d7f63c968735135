package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"venus_app_echo/internal/config"
	"venus_app_echo/internal/logger"
	"venus_app_echo/internal/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "venusctl",
		Short:         "Operational commands for the Venus backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(scheduleTaskCmd())
	rootCmd.AddCommand(seedPlansCmd())
	rootCmd.AddCommand(sendTestPushCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB loads configuration and connects to the database
func openDB() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, logger.GormLogLevel(cfg.LogLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect DB: %w", err)
	}
	return cfg, db, nil
}
