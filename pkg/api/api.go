// Package api 把各路由组挂到 gin 引擎上.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/router"
	"github.com/yeisme/vistoria/pkg/internal/service"
)

// RegisterGroup 注册全部业务路由；svc 提供审批策略与照片响应缓存.
func RegisterGroup(e *gin.Engine, cfg *configs.AppConfig, svc *service.Services) *gin.Engine {
	g := e.Group("/api")

	router.RegisterUploadRoutes(g, svc.PhotoCache)
	router.RegisterReportRoutes(g)
	router.RegisterHealthCheckRoute(g)
	router.RegisterSchedulerRoutes(g, svc.Policy)
	router.RegisterPDFRoute(e)
	router.RegisterSwaggerRoute(e, cfg)

	return e
}
