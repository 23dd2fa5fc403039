package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/phishgate/backend/internal/models"
)

const (
	// ContextTenant is the key for the resolved tenant context in gin context.
	// Set by the tenant resolution middleware (internal/tenants).
	ContextTenant = "tenant_context"
	// HeaderTenantID is the optional per-request tenant override header.
	HeaderTenantID = "X-Tenant-ID"
)

// MustTenantContext returns the resolved tenant context for the request.
func MustTenantContext(c *gin.Context) *models.TenantContext {
	return c.MustGet(ContextTenant).(*models.TenantContext)
}
