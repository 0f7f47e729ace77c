package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/configs"
	ctxPkg "github.com/yeisme/vistoria/pkg/context"
	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

// 外层认证注入的请求头.
const (
	HeaderUserID    = "X-User-Id"
	HeaderAuthEmail = "X-Auth-Request-Email"
	HeaderFwdEmail  = "X-Forwarded-Email"
	HeaderRole      = "X-Role"
)

const actorKey = "actor"

// ActorResolver 把会话身份解析为 Actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id service.Identity) (workflow.Actor, error)
}

// IdentityMiddleware 读取外层（oauth2-proxy 或网关）注入的身份头并解析为 Actor.
//   - X-User-Id 优先，其次 X-Auth-Request-Email / X-Forwarded-Email
//   - X-Role 覆盖用户表中的角色
//   - auth.dev_allow_query 时允许 ?user_id= 兜底
//   - auth.enabled 时没有身份返回 401；跳过路径不做解析
func IdentityMiddleware(conf configs.AuthConfig, resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()

			return
		}

		id, ok := identityFrom(c, conf.DevAllowQuery)
		if !ok {
			abort(c, http.StatusBadRequest, "X-User-Id inválido")

			return
		}

		if id.Empty() {
			if conf.Enabled {
				abort(c, http.StatusUnauthorized, "não autenticado")

				return
			}

			c.Next()

			return
		}

		actor, err := resolver.ResolveActor(c.Request.Context(), id)
		if err != nil {
			abortErr(c, err)

			return
		}

		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(ctxPkg.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// GetActor 当前请求的 Actor；没有身份时为匿名.
func GetActor(c *gin.Context) workflow.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(workflow.Actor); ok {
			return a
		}
	}

	return ctxPkg.GetActor(c.Request.Context())
}

func identityFrom(c *gin.Context, allowQuery bool) (service.Identity, bool) {
	raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if raw == "" && allowQuery {
		raw = strings.TrimSpace(c.Query("user_id"))
	}

	var id service.Identity

	if raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			return id, false
		}

		id.UserID = uint(n)
	}

	id.Email = strings.TrimSpace(c.GetHeader(HeaderAuthEmail))
	if id.Email == "" {
		id.Email = strings.TrimSpace(c.GetHeader(HeaderFwdEmail))
	}

	id.Role = strings.TrimSpace(c.GetHeader(HeaderRole))

	return id, true
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
