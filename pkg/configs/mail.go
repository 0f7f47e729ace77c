package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMailAPIURL  = "https://api.resend.com/emails"
	DefaultMailFrom    = "Relatórios <relatorios@vistoria.app>"
	DefaultMailFixedCC = "relatorios@vistoria.app"
	DefaultMailTimeout = 30 * time.Second
	DefaultMailPacing  = 500 * time.Millisecond
)

// MailConfig 邮件 API 配置 (HTTPS JSON + Bearer).
type MailConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIURL  string        `mapstructure:"api_url"  rule:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	From    string        `mapstructure:"from"     rule:"required"`
	FixedCC string        `mapstructure:"fixed_cc" rule:"omitempty,contains=@"`
	Timeout time.Duration `mapstructure:"timeout"`
	Pacing  time.Duration `mapstructure:"pacing"   rule:"min=500ms"`
	// Async 在后台执行审批副作用；请求只等待状态提交.
	Async bool `mapstructure:"async"`
}

func (c *MailConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mail.enabled", true)
	v.SetDefault("mail.api_url", DefaultMailAPIURL)
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.from", DefaultMailFrom)
	v.SetDefault("mail.fixed_cc", DefaultMailFixedCC)
	v.SetDefault("mail.timeout", DefaultMailTimeout)
	v.SetDefault("mail.pacing", DefaultMailPacing)
	v.SetDefault("mail.async", true)
}
