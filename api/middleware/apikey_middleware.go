// api/middleware/apikey_middleware.go
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// ResolveAPIKey maps a bearer credential to an API-key principal. A missing
// prefix, unknown hash or revoked key yields nil, never an error — absent
// credentials are a normal outcome, not a failure.
func ResolveAPIKey(ctx context.Context, db *sql.DB, credential string) (*auth.Principal, error) {
	if !strings.HasPrefix(credential, auth.APIKeyPrefix) {
		return nil, nil
	}
	key, err := storage.FindAPIKeyByHash(ctx, db, auth.HashAPIKey(credential))
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if key.RevokedAt != nil {
		return nil, nil
	}
	return &auth.Principal{UserID: key.UserID, APIKeyID: key.ID}, nil
}

// APIKeyAuthMiddleware authenticates requests by API key only. The agent
// surface sits behind this: session tokens are not accepted there.
func APIKeyAuthMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearerToken(c)
		if !ok {
			_ = c.Error(auth.ErrUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {key}"})
			return
		}

		principal, err := ResolveAPIKey(c.Request.Context(), db, credential)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if principal == nil {
			customLog.Printf("APIKeyAuthMiddleware: Rejected unknown or revoked key")
			_ = c.Error(auth.ErrUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Set(principalKey, *principal)
		c.Next()
	}
}
