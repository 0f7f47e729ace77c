package types

import "github.com/yeisme/vistoria/pkg/scheduler"

// HealthResponse 组件健康状态.
type HealthResponse struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthSummary 就绪检查汇总.
type HealthSummary struct {
	Status     string           `json:"status"`
	Components []HealthResponse `json:"components"`
}

// JobsResponse 定时任务列表.
type JobsResponse struct {
	Success bool                `json:"success"`
	Jobs    []scheduler.JobInfo `json:"jobs"`
}
