// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/app"
	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/storage"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "Construction-site inspection reports: autosave, approval, PDF and mail dispatch",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.Bootstrap(configPath)

			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory holding config.<ext>")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerUploadsCommands()
	registerReportCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// withManager 为一次性命令打开独立的存储管理器，结束后释放.
func withManager(ctx context.Context, fn func(ctx context.Context, mgr *storage.Manager) error) error {
	mgr, err := storage.New(ctx, configs.GetConfig())
	if err != nil {
		return err
	}

	defer func() { _ = mgr.Close() }()

	return fn(ctx, mgr)
}

// withServices 在 withManager 之上装配业务服务.
func withServices(ctx context.Context, fn func(ctx context.Context, svc *service.Services) error) error {
	return withManager(ctx, func(ctx context.Context, mgr *storage.Manager) error {
		return fn(ctx, service.FromManager(mgr, configs.GetConfig()))
	})
}
