package configs

import "github.com/spf13/viper"

// AuthConfig 会话身份由外层注入 (oauth2-proxy 或网关): X-User-Id / X-Auth-Request-Email + X-Role.
type AuthConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	SkipPaths     []string `mapstructure:"skip_paths"`
	DevAllowQuery bool     `mapstructure:"dev_allow_query"` // 允许 ?user_id= 便于本地调试
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.dev_allow_query", false)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/api/health",
		"/swagger",
	})
}
