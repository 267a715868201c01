package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/godataset/internal/app"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ingest HTTP server",
		Long: `Start the HTTP server exposing POST /api/processcsvfile.

Configuration is read from /config/config.yaml, or ./config/config.yaml
when LOCAL=true, unless --config is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(configPath) // Initialize the application
			wait := application.Start()        // Start the application and wait for the termination signal
			<-wait                             // Wait for the application to receive a termination signal

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			application.Stop(ctx) // Stop the application gracefully
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the config file")
	cmd.Flags().DurationVar(&timeout, "shutdown-timeout", 10*time.Second, "Time allowed for graceful shutdown")

	return cmd
}
