package middleware

import (
	"net/http"
	"strings"

	"Community_Channels/internal/pkg"
	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
)

const ContextIdentityKey = "identity"

// AuthMiddleware 解析外部认证服务签发的 access token，注入调用者身份
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			c.Abort()
			return
		}

		claims, err := pkg.ParseAccess(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextIdentityKey, service.Identity{
			ID:       claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
		})
		c.Next()
	}
}

// CurrentIdentity 从上下文取调用者身份
func CurrentIdentity(c *gin.Context) service.Identity {
	v, _ := c.Get(ContextIdentityKey)
	id, _ := v.(service.Identity)
	return id
}
