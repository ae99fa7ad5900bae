package main

import (
	"fmt"
	"os"

	"github.com/futig/proposal-backend/internal/builder"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:          "telegram-bot",
		Short:        "Telegram bot that interviews users and writes proposals",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := builder.BuildTelegramBot(environment)
			if err != nil {
				return fmt.Errorf("build telegram bot: %w", err)
			}
			return app.Run()
		},
	}

	cmd.Flags().StringVarP(&environment, "env", "e", os.Getenv("APP_ENV"), "Environment, selects the .env.<env> file")
	return cmd
}
