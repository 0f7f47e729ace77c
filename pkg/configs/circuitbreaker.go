package configs

import "github.com/spf13/viper"

// CircuitBreakerConfig 按路由熔断：PDF 渲染失败不会连带自动保存.
type CircuitBreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// PerRoute 每个路由模板一个熔断器；false 时全局共用一个
	PerRoute    bool    `mapstructure:"per_route"`
	FailureRate float64 `mapstructure:"failure_rate"         rule:"min=0,max=1"`
	MinRequests uint32  `mapstructure:"min_requests"`
	// 统计窗口与打开后的冷却时间，单位秒
	IntervalSeconds   int    `mapstructure:"interval_seconds"     rule:"min=0"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"      rule:"min=0"`
	MaxRequestsInHalf uint32 `mapstructure:"max_requests_in_half"`
	// SkipPrefixes 不参与熔断的路径前缀，健康检查本身就会返回 503
	SkipPrefixes []string `mapstructure:"skip_prefixes"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"enabled":              false,
		"per_route":            true,
		"failure_rate":         0.5,
		"min_requests":         20,
		"interval_seconds":     60,
		"timeout_seconds":      30,
		"max_requests_in_half": 5,
		"skip_prefixes":        []string{"/api/health", "/swagger"},
	}

	for k, val := range defaults {
		v.SetDefault("circuit_breaker."+k, val)
	}
}
