package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a sample run summary through the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		return err
	}

	// The notifier needs no database.
	a := &app{cfg: cfg, logger: logger}
	n, closeNotifier, err := a.notifier(ctx)
	if err != nil {
		return err
	}
	defer closeNotifier()
	if n == nil {
		return errors.New("notification.type is \"none\"")
	}

	if err := notifier.SendTestMessage(ctx, n); err != nil {
		logger.Error("test notification failed", "error", err)
		return err
	}
	logger.Info("test notification sent successfully")
	return nil
}
