package configs

import "github.com/spf13/viper"

// EventsConfig 报告生命周期事件发布开关.
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Producer string `mapstructure:"producer"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.producer", AppName)
}
