package cmd

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/configs"
)

var (
	debug       bool
	showSecrets bool

	// config 子命令.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "config subcommands",
	}

	// 打印当前使用的配置文件路径.
	pathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the path of the current config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := configs.GetViper()
			if v == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "config not initialized")

				return nil
			}

			cfg := v.ConfigFileUsed()
			if cfg == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file used (defaults and env only)")

				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), cfg)

			return nil
		},
	}

	// 以 JSON 打印生效配置，默认遮盖密码与密钥；--viper 时附带 viper 的 Debug 输出.
	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "print the current config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := configs.GetViper()
			if v == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "config not initialized.")

				return nil
			}

			if debug {
				v.Debug()
			}

			raw, err := sonic.Marshal(configs.GetConfig())
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			var tree map[string]any
			if err := sonic.Unmarshal(raw, &tree); err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			if !showSecrets {
				redact(tree)
			}

			b, err := sonic.ConfigStd.MarshalIndent(tree, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			return nil
		},
	}
)

var secretFields = []string{"password", "secret", "api_key", "apikey", "token", "access_key", "accesskey"}

// redact 把名字像密钥的非空字符串字段替换为 ******.
func redact(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			redact(val)
		case string:
			if val != "" && isSecretField(k) {
				m[k] = "******"
			}
		}
	}
}

func isSecretField(name string) bool {
	name = strings.ToLower(name)
	for _, f := range secretFields {
		if strings.Contains(name, f) {
			return true
		}
	}

	return false
}

// registerConfigsCommands 注册 CLI 子命令.
func registerConfigsCommands() {
	debugCmd.Flags().BoolVar(&debug, "viper", false, "also dump viper internals")
	debugCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print passwords and keys in clear text")

	configCmd.AddCommand(pathCmd)
	configCmd.AddCommand(debugCmd)

	rootCmd.AddCommand(configCmd)
}
