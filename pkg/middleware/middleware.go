// Package middleware gin 中间件：身份、权限、限流、熔断、缓存与可观测性.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/types"
)

// abort 以错误信封中止请求.
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, types.Fail(msg, nil))
}

// abortErr 按错误类型映射状态码并中止请求.
func abortErr(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.KindOf(err).Status(), types.Fail(errs.Message(err), errs.DetailsOf(err)))
}
