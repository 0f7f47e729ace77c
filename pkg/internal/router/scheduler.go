package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/internal/handle"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
	"github.com/yeisme/vistoria/pkg/middleware"
)

// RegisterSchedulerRoutes 注册运维路由，仅特权角色可用.
//
//	GET  /scheduler/jobs -> SchedulerJobs
//	POST /uploads/gc     -> CollectTemp
func RegisterSchedulerRoutes(g *gin.RouterGroup, policy *workflow.Policy) {
	ops := g.Group("", middleware.RequirePrivileged(policy))
	{
		ops.GET("/scheduler/jobs", handle.SchedulerJobs)
		ops.POST("/uploads/gc", handle.CollectTemp)
	}
}
