package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ctxPkg "github.com/yeisme/vistoria/pkg/context"
	"github.com/yeisme/vistoria/pkg/log"
)

// HeaderRequestID 请求 id，缺省时生成.
const HeaderRequestID = "X-Request-Id"

// GinLoggerMiddleware 使用 zerolog 记录请求日志；4xx 记为 warn，5xx 记为 error.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Header(HeaderRequestID, reqID)

		c.Next()

		status := c.Writer.Status()
		logger := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("http"))

		event := logger.Info()

		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		event = event.
			Str("request_id", reqID).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP())

		if a := GetActor(c); !a.Anonymous() {
			event = event.Uint("user_id", a.UserID)
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}
