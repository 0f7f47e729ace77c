// Package router 管理路由配置，把路径绑定到 pkg/internal/handle 中的处理器.
package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/cache"
	"github.com/yeisme/vistoria/pkg/internal/handle"
	"github.com/yeisme/vistoria/pkg/middleware"
)

const photoCacheTTL = time.Minute

// RegisterUploadRoutes 绑定暂存上传与照片读取.
//
//	POST /uploads/temp           -> StageUpload
//	GET  /uploads/temp/:temp_id  -> TempPreview
//	GET  /imagens/:id            -> ServePhoto（经响应缓存）
//
// photoCache 为 nil 时照片不经缓存.
func RegisterUploadRoutes(g *gin.RouterGroup, photoCache *cache.Cache) {
	uploads := g.Group("/uploads")
	{
		uploads.POST("/temp", handle.StageUpload)
		uploads.GET("/temp/:temp_id", handle.TempPreview)
	}

	if photoCache == nil {
		g.GET("/imagens/:id", handle.ServePhoto)

		return
	}

	cfg := middleware.DefaultCacheConfig(photoCache)
	cfg.TTL = photoCacheTTL
	cfg.Methods = []string{"GET"}
	cfg.Skipper = func(c *gin.Context) bool { return middleware.GetActor(c).Anonymous() }
	cfg.KeyFunc = func(c *gin.Context) string { return cache.PhotoKey(c.Param("id")) }

	g.GET("/imagens/:id", middleware.CacheMiddleware(cfg), handle.ServePhoto)
}

// RegisterReportRoutes 绑定报告生命周期接口.
func RegisterReportRoutes(g *gin.RouterGroup) {
	g.POST("/relatorios/autosave", handle.AutoSave)

	rel := g.Group("/relatorios/:id")
	{
		rel.GET("", handle.GetReport)
		rel.DELETE("", handle.DeleteReport)
		rel.POST("/submit-approval", handle.SubmitApproval)
		rel.POST("/approve", handle.Approve)
		rel.POST("/reject", handle.Reject)
		rel.DELETE("/imagens/:imagem_id", handle.DeletePhoto)
		rel.GET("/envios", handle.ListDispatches)
	}

	g.GET("/notificacoes", handle.ListNotifications)
}

// RegisterPDFRoute PDF 下载挂在根路径下，不在 /api 内.
func RegisterPDFRoute(r gin.IRouter) {
	r.GET("/relatorio/:id/pdf", handle.ReportPDF)
}
