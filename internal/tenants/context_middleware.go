package tenants

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/pkg/response"
)

// RequireTenantContext resolves and validates the active tenant for the
// request and stores it in context. Call after the JWT middleware. The
// X-Tenant-ID header, when present, overrides the principal's default tenant
// and must name a tenant the principal belongs to.
func RequireTenantContext(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.MustPrincipal(c)

		var requested *uuid.UUID
		if v := c.GetHeader(middleware.HeaderTenantID); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.BadRequest(c, "invalid tenant id header")
				c.Abort()
				return
			}
			requested = &id
		}

		tctx, err := resolver.Resolve(c.Request.Context(), principal, requested)
		if err != nil {
			switch {
			case errors.Is(err, ErrTenantNotFound):
				response.NotFound(c, "tenant not found")
			case errors.Is(err, ErrTenantInactive):
				response.Forbidden(c, "tenant is not active")
			case errors.Is(err, ErrTenantAccessDenied):
				response.Forbidden(c, "not a member of this tenant")
			default:
				response.Internal(c, "failed to resolve tenant")
			}
			c.Abort()
			return
		}
		c.Set(middleware.ContextTenant, tctx)
		c.Next()
	}
}
