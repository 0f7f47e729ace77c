package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/internal/service"
)

var (
	uploadsCmd = &cobra.Command{
		Use:   "uploads",
		Short: "staged photo commands",
	}

	uploadsGCCmd = &cobra.Command{
		Use:   "gc",
		Short: "remove staged photos older than uploads.temp_ttl",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, svc *service.Services) error {
				n, err := svc.Uploads.GC(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "removed %d staged upload(s)\n", n)

				return nil
			})
		},
	}
)

func registerUploadsCommands() {
	uploadsCmd.AddCommand(uploadsGCCmd)
	rootCmd.AddCommand(uploadsCmd)
}
