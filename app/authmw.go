package app

import (
	"net/http"

	"alforge/access"
	"alforge/apperr"
	"alforge/models"

	"github.com/gin-gonic/gin"
)

const (
	callerKey    = "caller"
	sessionIDKey = "sessionID"
)

func AuthRequired(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := g.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		SetCaller(c, res.Caller, res.SessionID)
		c.Next()
	}
}

// RequireRole 路由级别的同一条规则：已登录、账号启用、角色不低于 min
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.Require(CallerFrom(c), min); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": err.Error(), "code": apperr.KindPermissionDenied})
			return
		}
		c.Next()
	}
}

// SetCaller 把解析出的身份挂到请求上下文
func SetCaller(c *gin.Context, caller access.Caller, sessionID string) {
	c.Set(callerKey, caller)
	c.Set(sessionIDKey, sessionID)
	c.Set("userID", caller.UserID)
}

// CallerFrom returns the anonymous Caller when AuthRequired did not run.
func CallerFrom(c *gin.Context) access.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(access.Caller); ok {
			return caller
		}
	}
	return access.Caller{}
}

func SessionIDFrom(c *gin.Context) string { return c.GetString(sessionIDKey) }
