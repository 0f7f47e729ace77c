package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册健康检查路由：/health 汇总全部组件，子路径检查单个组件.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	g.GET("/health", handle.Health)

	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("/db", handle.HealthDB)
		healthRoutes.GET("/storage", handle.HealthStorage)
		healthRoutes.GET("/mq", handle.HealthMQ)
		healthRoutes.GET("/kv", handle.HealthKV)
	}
}
