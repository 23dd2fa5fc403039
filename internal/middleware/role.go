package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/pkg/response"
)

// RequirePlatformRole allows only principals holding one of the given
// platform-level roles. Used for cross-tenant administration (tenant
// onboarding, status changes).
func RequirePlatformRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal := MustPrincipal(c)
		if _, ok := allowed[principal.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTenantRole allows only callers whose resolved tenant role is one of
// the given roles. Call after TenantContext; tenant authorization is always
// evaluated against the membership role, never the platform role.
func RequireTenantRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		tctx := MustTenantContext(c)
		if _, ok := allowed[tctx.Role]; !ok {
			response.Forbidden(c, "insufficient tenant permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
