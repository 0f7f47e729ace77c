package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/internal/service"
)

var (
	pdfOutput string

	reportCmd = &cobra.Command{
		Use:     "report",
		Short:   "inspect a single report",
		Aliases: []string{"relatorio"},
	}

	// 渲染 PDF；默认写到当前目录下的标准文件名，-o - 写到标准输出.
	reportPDFCmd = &cobra.Command{
		Use:   "pdf <id>",
		Short: "render the PDF of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReportID(args[0])
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), func(ctx context.Context, svc *service.Services) error {
				out, err := svc.RenderReport(ctx, id)
				if err != nil {
					return err
				}

				if pdfOutput == "-" {
					_, err = cmd.OutOrStdout().Write(out.Data)

					return err
				}

				path := pdfOutput
				if path == "" {
					path = out.Filename
				}

				if err := os.WriteFile(path, out.Data, 0o644); err != nil {
					return err
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes, cached=%t)\n", path, len(out.Data), out.Cached)

				return nil
			})
		},
	}

	// 打印审批通过时会收到邮件的地址及其来源.
	reportRecipientsCmd = &cobra.Command{
		Use:   "recipients <id>",
		Short: "print the resolved mail recipients of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReportID(args[0])
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), func(ctx context.Context, svc *service.Services) error {
				res, err := svc.ResolveRecipients(ctx, id)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%d recipient(s)\n", res.Total)

				for _, e := range res.Emails {
					fmt.Fprintln(w, "  "+e)
				}

				kinds := make([]string, 0, len(res.ByKind))
				for k := range res.ByKind {
					kinds = append(kinds, k)
				}

				sort.Strings(kinds)

				for _, k := range kinds {
					fmt.Fprintf(w, "%s: %v\n", k, res.ByKind[k])
				}

				return nil
			})
		},
	}
)

func parseReportID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}

	return uint(n), nil
}

func registerReportCommands() {
	reportPDFCmd.Flags().StringVarP(&pdfOutput, "output", "o", "", "output file, - for stdout")

	reportCmd.AddCommand(reportPDFCmd)
	reportCmd.AddCommand(reportRecipientsCmd)
	rootCmd.AddCommand(reportCmd)
}
