package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/models"
)

// Resolution failures, each mapped to a distinct HTTP response by the caller.
var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantInactive     = errors.New("tenant is not active")
	ErrTenantAccessDenied = errors.New("tenant access denied")
)

// TenantLookup is the slice of Repository the resolver needs.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// Resolver validates and resolves the active tenant for a request. It is the
// sole mechanism enforcing tenant isolation: no component below this layer
// trusts a tenant id that did not pass through Resolve.
type Resolver struct {
	tenants  TenantLookup
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewResolver creates a tenant context resolver.
func NewResolver(tenants TenantLookup, recorder *audit.Recorder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{tenants: tenants, recorder: recorder, logger: logger}
}

// Resolve validates, in order: the tenant exists, it is active, and the
// principal holds a membership for it. A request-level tenant id takes
// precedence over the principal's default tenant. Platform super-admins skip
// the membership check and act with tenant-admin rights; the active-status
// check still applies to them.
//
// A denied cross-tenant access attempt writes exactly one failed_login audit
// entry so it is observable.
func (r *Resolver) Resolve(ctx context.Context, principal models.Principal, requestedTenantID *uuid.UUID) (*models.TenantContext, error) {
	var tenantID uuid.UUID
	switch {
	case requestedTenantID != nil:
		tenantID = *requestedTenantID
	case len(principal.Tenants) > 0:
		tenantID = principal.Tenants[0].TenantID
	default:
		return nil, ErrTenantNotFound
	}

	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("lookup tenant: %w", err)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	if tenant.Status != models.TenantStatusActive {
		return nil, ErrTenantInactive
	}

	role := models.TenantRoleAdmin
	if principal.Role != models.RoleSuperAdmin {
		membership, ok := principal.MembershipFor(tenant.ID)
		if !ok {
			r.denied(ctx, tenant.ID, principal)
			return nil, ErrTenantAccessDenied
		}
		role = membership.Role
	}

	return &models.TenantContext{
		TenantID:    tenant.ID,
		Credentials: tenant.Credentials(),
		Role:        role,
	}, nil
}

func (r *Resolver) denied(ctx context.Context, tenantID uuid.UUID, principal models.Principal) {
	r.logger.Warn("cross-tenant access denied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", principal.ID.String()))
	if r.recorder == nil {
		return
	}
	userID := principal.ID
	r.recorder.Record(ctx, &models.AuditLogEntry{
		TenantID:     tenantID,
		UserID:       &userID,
		EventType:    models.AuditFailedLogin,
		ResourceType: "auth",
		Description:  fmt.Sprintf("user %s attempted access without membership", principal.Email),
	})
}
