package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/phishgate/backend/internal/models"
)

const (
	// ContextPrincipal is the key for the verified principal in gin context.
	// Set by the JWT middleware (internal/auth).
	ContextPrincipal = "principal"
)

// MustPrincipal returns the verified principal stored by the JWT middleware.
func MustPrincipal(c *gin.Context) models.Principal {
	return c.MustGet(ContextPrincipal).(models.Principal)
}
