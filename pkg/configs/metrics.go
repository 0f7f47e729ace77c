package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标配置.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Path           string `mapstructure:"path"`
	RuntimeMetrics bool   `mapstructure:"runtime_metrics"`
	Pprof          bool   `mapstructure:"pprof"`
	// RouterEndpoint 为 watermill router 指标单独监听的地址，空表示不启动.
	RouterEndpoint string `mapstructure:"router_endpoint"`
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.router_endpoint", "")
}
