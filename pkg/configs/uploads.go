package configs

import (
	"time"

	"github.com/spf13/viper"
)

// BlobBackend 产物存储后端.
type BlobBackend string

const (
	BlobBackendLocal BlobBackend = "local"
	BlobBackendS3    BlobBackend = "s3"
)

const (
	DefaultUploadsRoot    = "."
	DefaultUploadsBackend = BlobBackendLocal
	DefaultMaxUploadBytes = 50 << 20 // 50 MiB
	DefaultTempTTL        = 24 * time.Hour
	DefaultTempGCCron     = "*/30 * * * *"
	DefaultTempMetaPrefix = "upload:temp:"
)

// DefaultAllowedExtensions accepted for photo uploads.
var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// UploadsConfig 照片上传与暂存配置.
type UploadsConfig struct {
	Backend           BlobBackend   `mapstructure:"backend"            rule:"oneof=local s3"`
	Root              string        `mapstructure:"root"               rule:"required"`
	MaxBytes          int64         `mapstructure:"max_bytes"          rule:"min=1"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions" rule:"min=1"`
	TempTTL           time.Duration `mapstructure:"temp_ttl"`
	GCEnabled         bool          `mapstructure:"gc_enabled"`
	GCCron            string        `mapstructure:"gc_cron"`
}

func (c *UploadsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("uploads.backend", DefaultUploadsBackend)
	v.SetDefault("uploads.root", DefaultUploadsRoot)
	v.SetDefault("uploads.max_bytes", DefaultMaxUploadBytes)
	v.SetDefault("uploads.allowed_extensions", DefaultAllowedExtensions)
	v.SetDefault("uploads.temp_ttl", DefaultTempTTL)
	v.SetDefault("uploads.gc_enabled", true)
	v.SetDefault("uploads.gc_cron", DefaultTempGCCron)
}
