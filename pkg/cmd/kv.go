package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/cache"
	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	kv "github.com/yeisme/vistoria/pkg/internal/storage/kv"
)

var errKVNotConfigured = errors.New("kv not configured")

// cacheScopes kv purge 可清理的范围.
var cacheScopes = map[string][]string{
	"pdf":    {cache.PrefixPDF},
	"photos": {cache.PrefixResponse},
	"all":    {cache.PrefixPDF, cache.PrefixResponse},
}

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue"},
	}

	// 列出已注册类型，* 标记当前配置（PDF 缓存与照片响应缓存使用它）.
	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered kv types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			current := configs.GetConfig().KV.Type

			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")

			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), marker(string(t) == current)+string(t))
			}
		},
	}

	kvKeysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "list keys matching a glob pattern (e.g. 'pdf:*')",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}

			return withManager(cmd.Context(), func(ctx context.Context, mgr *storage.Manager) error {
				client := mgr.GetKVClient()
				if client == nil {
					return errKVNotConfigured
				}

				keys, err := client.Keys(ctx, pattern)
				if err != nil {
					return err
				}

				sort.Strings(keys)

				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}

				return nil
			})
		},
	}

	// 清理派生缓存；暂存上传的元数据不在范围内，由 uploads gc 处理.
	kvPurgeCmd = &cobra.Command{
		Use:       "purge <pdf|photos|all>",
		Short:     "drop cached PDFs and/or photo responses",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"pdf", "photos", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *storage.Manager) error {
				client := mgr.GetKVClient()
				if client == nil {
					return errKVNotConfigured
				}

				for _, prefix := range cacheScopes[args[0]] {
					if err := cache.New(client, prefix).Clear(ctx); err != nil {
						return fmt.Errorf("purge %s: %w", prefix, err)
					}

					fmt.Fprintf(cmd.OutOrStdout(), "purged %s*\n", prefix)
				}

				return nil
			})
		},
	}
)

// marker 列表前缀.
func marker(active bool) string {
	if active {
		return " * "
	}

	return "   "
}

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd, kvKeysCmd, kvPurgeCmd)
}
