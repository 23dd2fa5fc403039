package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishgate/backend/internal/models"
)

const (
	// DefaultLimit bounds event list queries when the client does not ask.
	DefaultLimit = 100
	// MaxLimit caps event list queries regardless of what the client asks.
	MaxLimit = 1000
)

// Repository persists the append-only event stream. Events are only ever
// inserted, and removed solely by an explicit bulk clear after archival.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one event.
func (r *Repository) Insert(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (tenant_id, campaign_id, email, event_type, ip_address, user_agent, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		e.TenantID, e.CampaignID, e.Email, e.EventType, e.IPAddress, e.UserAgent, e.Payload, e.OccurredAt).
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

const eventCols = `id, tenant_id, campaign_id, email, event_type, ip_address, user_agent, payload, occurred_at, created_at`

// List returns a tenant's events newest first, optionally filtered to one
// campaign.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, campaignID *int64, limit int) ([]models.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if campaignID != nil {
		q += ` AND campaign_id = $2`
		args = append(args, *campaignID)
	}
	q += ` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, clampLimit(limit))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CampaignID, &e.Email, &e.EventType,
			&e.IPAddress, &e.UserAgent, &e.Payload, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// All streams every event for a tenant (optionally one campaign) oldest
// first. Used by the archive job before a bulk clear.
func (r *Repository) All(ctx context.Context, tenantID uuid.UUID, campaignID *int64) ([]models.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if campaignID != nil {
		q += ` AND campaign_id = $2`
		args = append(args, *campaignID)
	}
	q += ` ORDER BY occurred_at ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CampaignID, &e.Email, &e.EventType,
			&e.IPAddress, &e.UserAgent, &e.Payload, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BulkClear deletes a tenant's events, optionally scoped to one campaign, and
// returns the number of rows removed. Callers are expected to have archived
// the stream first.
func (r *Repository) BulkClear(ctx context.Context, tenantID uuid.UUID, campaignID *int64) (int64, error) {
	if campaignID != nil {
		tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE tenant_id = $1 AND campaign_id = $2`, tenantID, *campaignID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountSince returns the number of events for a tenant after the given time.
func (r *Repository) CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE tenant_id = $1 AND occurred_at >= $2`, tenantID, since).Scan(&n)
	return n, err
}
