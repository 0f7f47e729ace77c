// Package handle HTTP 处理器：解析请求、调用业务服务并写出响应信封.
package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/vistoria/pkg/context"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/types"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/middleware"
)

func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, types.Fail("não implementado", nil))
}

// fail 按错误类型写出信封；内部错误只记录日志，不向客户端泄露.
func fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := kind.Status()

	if status >= http.StatusInternalServerError {
		log.Component("http").Error().Err(err).Str("path", c.FullPath()).Str("kind", kind.String()).Msg("request failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, types.Fail(errs.Message(err), errs.DetailsOf(err)))
}

// services 取注入的业务服务；未注入属于装配错误.
func services(c *gin.Context) (*service.Services, bool) {
	svc := ctxPkg.GetServices(c.Request.Context())
	if svc == nil {
		fail(c, errs.New(errs.KindInternal, "services not initialized"))

		return nil, false
	}

	return svc, true
}

// paramID 解析路径中的正整数 id.
func paramID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		fail(c, errs.New(errs.KindValidation, "%s inválido", name))

		return 0, false
	}

	return uint(n), true
}

var actorOf = middleware.GetActor
