package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/yeisme/vistoria/docs"
	"github.com/yeisme/vistoria/pkg/configs"
)

// RegisterSwaggerRoute 注册Swagger文档路由，仅 debug 模式.
func RegisterSwaggerRoute(r *gin.Engine, cfg *configs.AppConfig) {
	if !cfg.Server.Debug {
		return
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	docs.SwaggerInfo.Version = configs.AppVersion

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
