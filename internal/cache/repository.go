// Package cache is the last-known-good mirror of upstream campaign state.
// It is never the system of record: rows are derived from the last successful
// upstream response (or ingested events) for their key, and last_synced lets
// consumers detect staleness.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishgate/backend/internal/models"
)

// Repository persists cached campaigns and per-recipient results, keyed by
// (tenant_id, upstream_id). The composite key makes cross-tenant overwrite
// impossible.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a cache repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes through the latest upstream snapshot of a campaign.
// Resource fields are last-writer-wins; the denormalized event counters are
// owned by the ingestion pipeline and left untouched here.
func (r *Repository) Upsert(ctx context.Context, c *models.Campaign) error {
	const q = `INSERT INTO campaigns (tenant_id, upstream_id, name, status, launch_date, completed_date, last_synced)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (tenant_id, upstream_id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			launch_date = EXCLUDED.launch_date,
			completed_date = EXCLUDED.completed_date,
			last_synced = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, c.TenantID, c.UpstreamID, c.Name, c.Status, c.LaunchDate, c.CompletedDate).
		Scan(&c.ID, &c.LastSynced, &c.CreatedAt, &c.UpdatedAt)
}

// ReplaceResults mirrors the upstream recipient list for a campaign. Status
// follows upstream; engagement dates already recorded by the ingestion
// pipeline are preserved.
func (r *Repository) ReplaceResults(ctx context.Context, tenantID uuid.UUID, upstreamID int64, results []models.CampaignResult) error {
	const q = `INSERT INTO campaign_results (tenant_id, campaign_id, email, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, campaign_id, email) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()`
	for _, res := range results {
		if _, err := r.pool.Exec(ctx, q, tenantID, upstreamID, res.Email, res.Status); err != nil {
			return fmt.Errorf("upsert result %s: %w", res.Email, err)
		}
	}
	return nil
}

const campaignCols = `id, tenant_id, upstream_id, name, status, sent, opened, clicked, submitted, reported, launch_date, completed_date, last_synced, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.TenantID, &c.UpstreamID, &c.Name, &c.Status,
		&c.Stats.Sent, &c.Stats.Opened, &c.Stats.Clicked, &c.Stats.Submitted, &c.Stats.Reported,
		&c.LaunchDate, &c.CompletedDate, &c.LastSynced, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns one cached campaign with its recipient results, or nil when
// the key has never been cached.
func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID, upstreamID int64) (*models.Campaign, error) {
	const q = `SELECT ` + campaignCols + ` FROM campaigns WHERE tenant_id = $1 AND upstream_id = $2`
	c, err := scanCampaign(r.pool.QueryRow(ctx, q, tenantID, upstreamID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	const rq = `SELECT email, status, open_date, click_date, submit_date, report_date
		FROM campaign_results WHERE tenant_id = $1 AND campaign_id = $2 ORDER BY email`
	rows, err := r.pool.Query(ctx, rq, tenantID, upstreamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var res models.CampaignResult
		if err := rows.Scan(&res.Email, &res.Status, &res.OpenDate, &res.ClickDate, &res.SubmitDate, &res.ReportDate); err != nil {
			return nil, err
		}
		c.Results = append(c.Results, res)
	}
	return c, rows.Err()
}

// List returns all cached campaigns for a tenant, without results.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]models.Campaign, error) {
	const q = `SELECT ` + campaignCols + ` FROM campaigns WHERE tenant_id = $1 ORDER BY upstream_id`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// OldestSync returns the oldest last_synced among a tenant's cached
// campaigns, for staleness labeling of list fallbacks.
func (r *Repository) OldestSync(ctx context.Context, tenantID uuid.UUID) (time.Time, error) {
	var t time.Time
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MIN(last_synced), NOW()) FROM campaigns WHERE tenant_id = $1`, tenantID).Scan(&t)
	return t, err
}

// Delete drops a cached campaign and its results after an upstream delete.
func (r *Repository) Delete(ctx context.Context, tenantID uuid.UUID, upstreamID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM campaign_results WHERE tenant_id = $1 AND campaign_id = $2`, tenantID, upstreamID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE tenant_id = $1 AND upstream_id = $2`, tenantID, upstreamID)
	return err
}

func counterColumn(et models.EventType) (string, bool) {
	switch et {
	case models.EventEmailSent:
		return "sent", true
	case models.EventEmailOpened:
		return "opened", true
	case models.EventClicked:
		return "clicked", true
	case models.EventSubmittedData:
		return "submitted", true
	case models.EventReported:
		return "reported", true
	}
	return "", false
}

func resultDateColumn(et models.EventType) string {
	switch et {
	case models.EventEmailOpened:
		return "open_date"
	case models.EventClicked:
		return "click_date"
	case models.EventSubmittedData:
		return "submit_date"
	case models.EventReported:
		return "report_date"
	}
	return ""
}

func resultStatus(et models.EventType) string {
	switch et {
	case models.EventEmailSent:
		return "Email Sent"
	case models.EventEmailOpened:
		return "Email Opened"
	case models.EventClicked:
		return "Clicked Link"
	case models.EventSubmittedData:
		return "Submitted Data"
	case models.EventReported:
		return "Email Reported"
	}
	return ""
}

// ApplyEvent increments the matching denormalized counter and updates the
// recipient's result row. Returns false without error when the campaign is
// not cached: events must never be dropped because of cache staleness, so
// the caller persists the event regardless.
//
// The increment is a single atomic UPDATE, which keeps concurrent webhook
// deliveries for the same campaign from losing updates.
func (r *Repository) ApplyEvent(ctx context.Context, tenantID uuid.UUID, upstreamID int64, email string, et models.EventType, occurredAt time.Time) (bool, error) {
	col, ok := counterColumn(et)
	if !ok {
		return false, fmt.Errorf("unknown event type %q", et)
	}

	q := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = NOW() WHERE tenant_id = $1 AND upstream_id = $2`, col, col)
	tag, err := r.pool.Exec(ctx, q, tenantID, upstreamID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	status := resultStatus(et)
	if dateCol := resultDateColumn(et); dateCol != "" {
		rq := fmt.Sprintf(`INSERT INTO campaign_results (tenant_id, campaign_id, email, status, %s)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, campaign_id, email) DO UPDATE SET
				status = EXCLUDED.status,
				%s = EXCLUDED.%s,
				updated_at = NOW()`, dateCol, dateCol, dateCol)
		if _, err := r.pool.Exec(ctx, rq, tenantID, upstreamID, email, status, occurredAt); err != nil {
			return true, err
		}
		return true, nil
	}

	const rq = `INSERT INTO campaign_results (tenant_id, campaign_id, email, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, campaign_id, email) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()`
	if _, err := r.pool.Exec(ctx, rq, tenantID, upstreamID, email, status); err != nil {
		return true, err
	}
	return true, nil
}
