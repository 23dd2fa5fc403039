package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishgate/backend/internal/models"
)

const (
	// DefaultLimit is applied when a query does not specify one.
	DefaultLimit = 50
	// MaxLimit bounds every audit query to prevent unbounded scans.
	MaxLimit = 500
)

// Repository handles append-only audit log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry. Entries are immutable once written.
func (r *Repository) Insert(ctx context.Context, e *models.AuditLogEntry) error {
	const q = `INSERT INTO audit_logs (tenant_id, user_id, event_type, resource_type, resource_id, description, metadata)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, e.TenantID, e.UserID, e.EventType, e.ResourceType, e.ResourceID, e.Description, e.Metadata).
		Scan(&e.ID, &e.CreatedAt)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

const selectCols = `SELECT id, tenant_id, user_id, event_type, resource_type, COALESCE(resource_id,''), description, metadata, created_at FROM audit_logs`

func (r *Repository) scanList(ctx context.Context, q string, args ...interface{}) ([]models.AuditLogEntry, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.EventType, &e.ResourceType, &e.ResourceID, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// RecentByTenant returns the most recent entries for a tenant.
func (r *Repository) RecentByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	q := selectCols + ` WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.scanList(ctx, q, tenantID, clampLimit(limit))
}

// ByUser returns a tenant's entries for one user.
func (r *Repository) ByUser(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	q := selectCols + ` WHERE tenant_id = $1 AND user_id = $2 ORDER BY created_at DESC LIMIT $3`
	return r.scanList(ctx, q, tenantID, userID, clampLimit(limit))
}

// ByEventType returns a tenant's entries of one event type.
func (r *Repository) ByEventType(ctx context.Context, tenantID uuid.UUID, eventType string, limit int) ([]models.AuditLogEntry, error) {
	q := selectCols + ` WHERE tenant_id = $1 AND event_type = $2 ORDER BY created_at DESC LIMIT $3`
	return r.scanList(ctx, q, tenantID, eventType, clampLimit(limit))
}

// ByDateRange returns a tenant's entries within [from, to].
func (r *Repository) ByDateRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]models.AuditLogEntry, error) {
	q := selectCols + ` WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at DESC LIMIT $4`
	return r.scanList(ctx, q, tenantID, from, to, clampLimit(limit))
}
