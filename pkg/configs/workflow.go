package configs

import "github.com/spf13/viper"

const DefaultTimezone = "America/Sao_Paulo"

// WorkflowConfig 审批流程配置.
type WorkflowConfig struct {
	// GlobalApprovers 可审批所有项目的身份: 用户 id 或 email.
	GlobalApprovers []string `mapstructure:"global_approvers"`
	Timezone        string   `mapstructure:"timezone"         rule:"required"`
	// PrivilegedRoles X-Role 值视为特权 (admin/master).
	PrivilegedRoles []string `mapstructure:"privileged_roles"`
}

func (c *WorkflowConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("workflow.global_approvers", []string{})
	v.SetDefault("workflow.timezone", DefaultTimezone)
	v.SetDefault("workflow.privileged_roles", []string{"admin", "master"})
}
