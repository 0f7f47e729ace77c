package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/app"
	"github.com/yeisme/vistoria/pkg/configs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP server and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	a, err := app.NewApp(ctx, configs.GetConfig())
	if err != nil {
		return err
	}

	return a.Run(ctx)
}

func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
