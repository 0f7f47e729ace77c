// Package configs loads the application configuration: database, artifact storage, KV,
// message queue, mail API, workflow and observability settings.
// Supported formats are yaml, json, toml and dotenv; the file is hot reloaded when enabled.
//
// Example:
//
//	if err := configs.InitConfig("./"); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := configs.GetConfig()
//	fmt.Println(cfg.Server.Port, cfg.DB.GetDSN(), cfg.Mail.APIURL)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yeisme/vistoria/pkg/rule"
)

// EnvPrefix is the prefix of every environment override (VISTORIA_SERVER_PORT, ...).
const EnvPrefix = "VISTORIA"

type (
	// AppConfig is the root configuration.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`
		DB             DBConfig             `mapstructure:"db"`
		S3             S3Config             `mapstructure:"s3"`
		KV             KVConfig             `mapstructure:"kv"`
		MQ             MQConfig             `mapstructure:"mq"`
		Log            LogConfig            `mapstructure:"log"`
		Metrics        MetricsConfig        `mapstructure:"metrics"`
		Tracing        TracingConfig        `mapstructure:"tracing"`
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
		Auth           AuthConfig           `mapstructure:"auth"`
		Events         EventsConfig         `mapstructure:"events"`
		Uploads        UploadsConfig        `mapstructure:"uploads"`
		Mail           MailConfig           `mapstructure:"mail"`
		Workflow       WorkflowConfig       `mapstructure:"workflow"`
		PDF            PDFConfig            `mapstructure:"pdf"`
	}
)

var (
	globalConfig AppConfig
	appViper     *viper.Viper
)

// envBindings maps well-known deployment variables onto config keys.
var envBindings = map[string][]string{
	"db.url":            {"DATABASE_URL"},
	"mail.api_key":      {"MAIL_API_KEY", "RESEND_API_KEY"},
	"mail.from":         {"MAIL_FROM"},
	"workflow.timezone": {"TZ_NAME"},
}

// InitConfig loads configuration from path (a file or a directory holding config.<ext>).
// A missing config file is not an error: defaults and the environment still apply.
func InitConfig(path string) error {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load(filepath.Join(path, ".env"))

	v := viper.New()
	setAllDefaults(v)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	globalConfig = cfg
	appViper = v

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// Validate checks the rule tags of every section.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults registers the defaults of every section.
func setAllDefaults(v *viper.Viper) {
	var c AppConfig

	c.Server.setDefaults(v)
	c.DB.setDefaults(v)
	c.S3.setDefaults(v)
	c.KV.setDefaults(v)
	c.MQ.setDefaults(v)
	c.Log.setDefaults(v)
	c.Metrics.setDefaults(v)
	c.Tracing.setDefaults(v)
	c.RateLimit.setDefaults(v)
	c.CircuitBreaker.setDefaults(v)
	c.Auth.setDefaults(v)
	c.Events.setDefaults(v)
	c.Uploads.setDefaults(v)
	c.Mail.setDefaults(v)
	c.Workflow.setDefaults(v)
	c.PDF.setDefaults(v)
}

// Defaults returns an AppConfig populated only from defaults. Tests and one-shot commands use it.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var c AppConfig
	_ = v.Unmarshal(&c)

	return c
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Fprintln(os.Stderr, "config file changed, reloading:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error reloading config: %v\n", err)

			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "reloaded config rejected: %v\n", err)

			return
		}

		globalConfig = cfg
	})
	v.WatchConfig()
}

// GetConfig returns the global configuration.
func GetConfig() *AppConfig {
	return &globalConfig
}

// SetConfig replaces the global configuration.
func SetConfig(cfg AppConfig) {
	globalConfig = cfg
}

// GetViper returns the viper instance used by InitConfig, nil before initialization.
func GetViper() *viper.Viper {
	return appViper
}
