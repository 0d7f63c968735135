package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"venus_app_echo/internal/config"
	"venus_app_echo/internal/logger"
	"venus_app_echo/internal/services"
)

func sendTestPushCmd() *cobra.Command {
	var token, title, body string

	cmd := &cobra.Command{
		Use:   "send-test-push",
		Short: "Send a notification to one FCM device token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Setup(cfg.LogLevel, cfg.LogFormat)

			client, err := services.InitMessaging(cmd.Context(), cfg.FirebaseCredentialsPath)
			if err != nil {
				return fmt.Errorf("failed to initialize Firebase: %w", err)
			}

			if err := services.NewNotifier(client).SendTest(cmd.Context(), token, title, body); err != nil {
				return err
			}
			fmt.Println("Notification sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "FCM registration token (required)")
	cmd.Flags().StringVar(&title, "title", "Venus", "notification title")
	cmd.Flags().StringVar(&body, "body", "Test notification", "notification body")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
