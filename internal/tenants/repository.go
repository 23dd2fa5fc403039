package tenants

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishgate/backend/internal/models"
)

// Repository handles tenant and membership persistence. Tenant settings carry
// the per-tenant upstream credentials; entries are read-only for the duration
// of a request and rotation is an UpdateSettings write.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantCols = `id, name, display_name, settings, status, plan, created_at, updated_at`

func scanTenant(row interface{ Scan(...interface{}) error }) (*models.Tenant, error) {
	var t models.Tenant
	var settings []byte
	if err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &settings, &t.Status, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("decode tenant settings: %w", err)
		}
	}
	return &t, nil
}

// Create inserts a new tenant. The slug is validated and unique; duplicate
// slugs surface as a database constraint error.
func (r *Repository) Create(ctx context.Context, t *models.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("encode tenant settings: %w", err)
	}
	const q = `INSERT INTO tenants (name, display_name, settings, status, plan)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.Name, t.DisplayName, settings, t.Status, t.Plan).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a tenant by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenants WHERE id = $1`
	return scanTenant(r.pool.QueryRow(ctx, q, id))
}

// GetBySlug returns a tenant by its unique slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenants WHERE name = $1`
	return scanTenant(r.pool.QueryRow(ctx, q, slug))
}

// GetByWebhookToken resolves a tenant from its per-tenant webhook token.
// Empty tokens never match, so an unconfigured tenant cannot receive webhooks.
func (r *Repository) GetByWebhookToken(ctx context.Context, token string) (*models.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenants
		WHERE settings->>'webhook_token' = $1 AND settings->>'webhook_token' <> ''`
	return scanTenant(r.pool.QueryRow(ctx, q, token))
}

// List returns all tenants, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenants ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// UpdateSettings replaces the tenant's settings record (credential rotation).
func (r *Repository) UpdateSettings(ctx context.Context, id uuid.UUID, settings models.TenantSettings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode tenant settings: %w", err)
	}
	const q = `UPDATE tenants SET settings = $1, updated_at = NOW() WHERE id = $2`
	_, err = r.pool.Exec(ctx, q, body, id)
	return err
}

// UpdateStatus transitions the tenant lifecycle state. Tenants are never
// physically deleted.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	const q = `UPDATE tenants SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// UpdateProfile updates display name and plan.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, plan string) error {
	const q = `UPDATE tenants SET display_name = $1, plan = COALESCE(NULLIF($2,''), plan), updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, displayName, plan, id)
	return err
}

// Memberships

// MembershipsForUser returns all tenant memberships for a user.
func (r *Repository) MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.TenantMembership, error) {
	const q = `SELECT tenant_id, role FROM tenant_users WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TenantMembership
	for rows.Next() {
		var m models.TenantMembership
		if err := rows.Scan(&m.TenantID, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Member is a user's membership row joined with user identity, for listing.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
}

// ListMembers returns the users belonging to a tenant.
func (r *Repository) ListMembers(ctx context.Context, tenantID uuid.UUID) ([]Member, error) {
	const q = `SELECT u.id, u.email, u.full_name, tu.role
		FROM tenant_users tu INNER JOIN users u ON u.id = tu.user_id
		WHERE tu.tenant_id = $1 ORDER BY u.full_name, u.email`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// AddMember attaches a user to a tenant with a tenant-scoped role.
func (r *Repository) AddMember(ctx context.Context, tenantID, userID uuid.UUID, role string) error {
	const q = `INSERT INTO tenant_users (tenant_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.pool.Exec(ctx, q, tenantID, userID, role)
	return err
}

// RemoveMember detaches a user from a tenant (soft removal of the user).
func (r *Repository) RemoveMember(ctx context.Context, tenantID, userID uuid.UUID) error {
	const q = `DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, tenantID, userID)
	return err
}

// UpdateMemberRole changes a user's tenant-scoped role.
func (r *Repository) UpdateMemberRole(ctx context.Context, tenantID, userID uuid.UUID, role string) error {
	const q = `UPDATE tenant_users SET role = $1 WHERE tenant_id = $2 AND user_id = $3`
	_, err := r.pool.Exec(ctx, q, role, tenantID, userID)
	return err
}

// CountMembers returns the number of users attached to a tenant, for
// enforcing the tenant's MaxUsers limit.
func (r *Repository) CountMembers(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenant_users WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, err
}
