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
		Use:          "proposal-backend",
		Short:        "HTTP API for interview sessions and proposal generation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := builder.Build(environment)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			return app.Run()
		},
	}

	cmd.Flags().StringVarP(&environment, "env", "e", os.Getenv("APP_ENV"), "Environment, selects the .env.<env> file")
	return cmd
}
