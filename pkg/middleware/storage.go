package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/context"
	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/storage"
)

// StorageMiddleware 注入存储管理器，健康检查使用.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ServicesMiddleware 注入业务服务.
func ServicesMiddleware(svc *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithServices(c.Request.Context(), svc)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
