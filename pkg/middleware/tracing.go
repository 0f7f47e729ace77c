package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/vistoria/pkg/tracing"
)

// TracingMiddleware 为每个请求开启 server span；span 名使用路由模板而不是实际路径.
// 只有 5xx 标记为错误，业务拒绝（4xx）不算.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracing.StartSpan(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.user_agent", c.Request.UserAgent()),
				attribute.String("net.peer.ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))

		if a := GetActor(c); !a.Anonymous() {
			span.SetAttributes(attribute.Int64("vistoria.user_id", int64(a.UserID)))
		}

		switch {
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, c.Errors.String())
		case len(c.Errors) > 0:
			span.SetAttributes(attribute.String("vistoria.error", c.Errors.Last().Error()))
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
