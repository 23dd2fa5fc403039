package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/pkg/response"
)

// JWT returns a middleware that validates the bearer token and stores the
// verified principal in context. Everything downstream trusts the principal
// as-is.
func JWT(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(middleware.ContextPrincipal, claims.Principal())
		c.Next()
	}
}
