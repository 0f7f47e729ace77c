package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxBatchSize = 512
	DefaultMaxQueueSize = 2048
)

// TracingConfig OpenTelemetry 追踪配置.
type TracingConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	ExporterType   string        `mapstructure:"exporter_type"   rule:"oneof=otlp-http otlp-grpc zipkin"`
	Endpoint       string        `mapstructure:"endpoint"`
	SampleRate     float64       `mapstructure:"sample_rate"     rule:"min=0,max=1"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	MaxBatchSize   int           `mapstructure:"max_batch_size"  rule:"min=1"`
	MaxQueueSize   int           `mapstructure:"max_queue_size"  rule:"min=1"`
}

func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", AppName)
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter_type", "otlp-http")
	v.SetDefault("tracing.endpoint", "http://localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.batch_timeout", "5s")
	v.SetDefault("tracing.max_batch_size", DefaultMaxBatchSize)
	v.SetDefault("tracing.max_queue_size", DefaultMaxQueueSize)
}
