package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware CORS 中间件；放行外层认证注入的身份头.
func CORSMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AddAllowHeaders(HeaderUserID, HeaderAuthEmail, HeaderRole, HeaderRequestID)
	config.AddExposeHeaders(HeaderRequestID, "Content-Disposition", headerCache)

	return cors.New(config)
}
