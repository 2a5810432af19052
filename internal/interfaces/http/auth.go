package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kpicloud/taskflow/internal/application/service"
	"github.com/kpicloud/taskflow/internal/domain/entity"
)

// identityKey is the gin context key holding the caller identity.
const identityKey = "identity"

// AuthMiddleware validates the Bearer token and stores the caller identity
// on the request context.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		identity, err := authService.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid token",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// callerIdentity reads the identity stored by AuthMiddleware.
func callerIdentity(c *gin.Context) entity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(entity.Identity); ok {
			return identity
		}
	}
	return entity.Identity{}
}
