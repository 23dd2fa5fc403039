package tenants_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/tenants"
)

type fakeTenantStore struct {
	byID map[uuid.UUID]*models.Tenant
}

func (s *fakeTenantStore) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

type fakeAuditWriter struct {
	entries []*models.AuditLogEntry
}

func (w *fakeAuditWriter) Insert(_ context.Context, e *models.AuditLogEntry) error {
	w.entries = append(w.entries, e)
	return nil
}

func activeTenant(key string) *models.Tenant {
	return &models.Tenant{
		ID:     uuid.New(),
		Name:   "acme",
		Status: models.TenantStatusActive,
		Settings: models.TenantSettings{
			UpstreamAPIKey:    key,
			UpstreamAPIURL:    "https://phish.acme.internal:3333",
			UpstreamVerifyTLS: true,
		},
	}
}

func newResolver(store *fakeTenantStore, sink *fakeAuditWriter) *tenants.Resolver {
	return tenants.NewResolver(store, audit.NewRecorder(sink, zap.NewNop()), zap.NewNop())
}

func TestResolveUsesDefaultMembership(t *testing.T) {
	tenant := activeTenant("key-a")
	store := &fakeTenantStore{byID: map[uuid.UUID]*models.Tenant{tenant.ID: tenant}}
	r := newResolver(store, &fakeAuditWriter{})

	principal := models.Principal{
		ID:      uuid.New(),
		Role:    models.RoleUser,
		Tenants: []models.TenantMembership{{TenantID: tenant.ID, Role: models.TenantRoleUser}},
	}

	tctx, err := r.Resolve(context.Background(), principal, nil)
	require.NoError(t, err)
	require.Equal(t, tenant.ID, tctx.TenantID)
	require.Equal(t, models.TenantRoleUser, tctx.Role)
	require.Equal(t, "key-a", tctx.Credentials.APIKey)
	require.True(t, tctx.Credentials.VerifyTLS)
}

func TestResolveHeaderOverridesDefault(t *testing.T) {
	first := activeTenant("key-a")
	second := activeTenant("key-b")
	store := &fakeTenantStore{byID: map[uuid.UUID]*models.Tenant{first.ID: first, second.ID: second}}
	r := newResolver(store, &fakeAuditWriter{})

	principal := models.Principal{
		ID:   uuid.New(),
		Role: models.RoleUser,
		Tenants: []models.TenantMembership{
			{TenantID: first.ID, Role: models.TenantRoleUser},
			{TenantID: second.ID, Role: models.TenantRoleAdmin},
		},
	}

	tctx, err := r.Resolve(context.Background(), principal, &second.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, tctx.TenantID)
	require.Equal(t, models.TenantRoleAdmin, tctx.Role)
	require.Equal(t, "key-b", tctx.Credentials.APIKey, "credentials must come from the resolved tenant")
}

func TestResolveUnknownTenant(t *testing.T) {
	store := &fakeTenantStore{byID: map[uuid.UUID]*models.Tenant{}}
	r := newResolver(store, &fakeAuditWriter{})

	missing := uuid.New()
	principal := models.Principal{ID: uuid.New(), Role: models.RoleUser}

	_, err := r.Resolve(context.Background(), principal, &missing)
	require.ErrorIs(t, err, tenants.ErrTenantNotFound)

	// no memberships and no requested tenant
	_, err = r.Resolve(context.Background(), principal, nil)
	require.ErrorIs(t, err, tenants.ErrTenantNotFound)
}

func TestResolveSuspendedTenant(t *testing.T) {
	tenant := activeTenant("key-a")
	tenant.Status = models.TenantStatusSuspended
	store := &fakeTenantStore{byID: map[uuid.UUID]*models.Tenant{tenant.ID: tenant}}
	r := newResolver(store, &fakeAuditWriter{})

	principal := models.Principal{
		ID:      uuid.New(),
		Role:    models.RoleUser,
		Tenants: []models.TenantMembership{{TenantID: tenant.ID, Role: models.TenantRoleAdmin}},
	}

	_, err := r.Resolve(context.Background(), principal, nil)
	require.ErrorIs(t, err, tenants.ErrTenantInactive)
}

func TestResolveDeniedWritesOneAuditEntry(t *testing.T) {
	tenant := activeTenant("key-a")
	store := &fakeTenantStore{byID: map[uuid.UUID]*models.Tenant{tenant.ID: tenant}}
	sink := &fakeAuditWriter{}
	r := newResolver(store, sink)

	principal := models.Principal{ID: uuid.New(), Email: "mallory@other.test", Role: models.RoleUser}

	_, err := r.Resolve(context.Background(), principal, &tenant.ID)
	require.ErrorIs(t, err, tenants.ErrTenantAccessDenied)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.Equal(t, models.AuditFailedLogin, entry.EventType)
	require.Equal(t, tenant.ID, entry.TenantID)
	require.Equal(t, principal.ID, *entry.UserID)
}

func TestResolveSuperAdminSkipsMembershipNotStatus(t *testing.T) {
	active := activeTenant("key-a")
	suspended := activeTenant("key-b")
	suspended.Status = models.TenantStatusSuspended
	store := &fakeTenantStore{byID: map[uuid.UUID]*models.Tenant{active.ID: active, suspended.ID: suspended}}
	sink := &fakeAuditWriter{}
	r := newResolver(store, sink)

	principal := models.Principal{ID: uuid.New(), Role: models.RoleSuperAdmin}

	tctx, err := r.Resolve(context.Background(), principal, &active.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenantRoleAdmin, tctx.Role)
	require.Empty(t, sink.entries)

	_, err = r.Resolve(context.Background(), principal, &suspended.ID)
	require.ErrorIs(t, err, tenants.ErrTenantInactive, "super-admin does not bypass the active-status check")
}
