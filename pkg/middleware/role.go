package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

// RequirePrivileged 只允许特权角色（workflow.privileged_roles，默认 admin / master）.
func RequirePrivileged(policy *workflow.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := GetActor(c)

		switch {
		case a.Anonymous():
			abort(c, http.StatusUnauthorized, "não autenticado")
		case !policy.IsPrivileged(a):
			abort(c, http.StatusForbidden, "acesso restrito a administradores")
		default:
			c.Next()
		}
	}
}
