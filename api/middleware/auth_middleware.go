// api/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
)

var customLog = logger.NewLogger()

const principalKey = "principal"

// Principal returns the authenticated principal placed on the context by
// SessionAuthMiddleware or APIKeyAuthMiddleware. Must only be called on
// routes behind one of them.
func Principal(c *gin.Context) auth.Principal {
	return c.MustGet(principalKey).(auth.Principal)
}

// SessionAuthMiddleware checks JWT session authentication and sets the
// principal on the context.
func SessionAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			_ = c.Error(auth.ErrUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		principal, err := auth.ValidateJWT(tokenString, cfg.JWTSecret)
		if err != nil {
			customLog.Printf("SessionAuthMiddleware: Token validation failed: %v", err)
			_ = c.Error(err)
			c.Abort() // ErrorHandler maps the sentinel
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// AdminMiddleware gates a route group to ADMIN principals. Must run after
// SessionAuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Principal(c).Role != domain.RoleAdmin {
			_ = c.Error(auth.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
