// Package reports computes engagement aggregations from the raw event
// stream. Reports are recomputed per request; nothing here is materialized.
package reports

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishgate/backend/internal/models"
)

// TimelinePoint is one UTC calendar day's event counts.
type TimelinePoint struct {
	Date      string `json:"date"` // YYYY-MM-DD, UTC
	Sent      int    `json:"sent"`
	Opened    int    `json:"opened"`
	Clicked   int    `json:"clicked"`
	Submitted int    `json:"submitted"`
	Reported  int    `json:"reported"`
}

// Timeline is a per-day series in ascending date order plus grand totals.
type Timeline struct {
	Series []TimelinePoint `json:"series"`
	Totals TimelinePoint   `json:"totals"`
}

// HeatmapCell is an event count for one weekday/hour bucket. Weekday is
// 0=Sunday..6=Saturday; Hour is 0-23.
type HeatmapCell struct {
	Weekday int `json:"weekday"`
	Hour    int `json:"hour"`
	Count   int `json:"count"`
}

// Repository runs aggregation queries against the event stream.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Timeline groups a tenant's events by UTC calendar day. Days with no events
// are absent from the series.
func (r *Repository) Timeline(ctx context.Context, tenantID uuid.UUID, campaignID *int64) (*Timeline, error) {
	q := `SELECT to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*) FILTER (WHERE event_type = 'email_sent'),
			COUNT(*) FILTER (WHERE event_type = 'email_opened'),
			COUNT(*) FILTER (WHERE event_type = 'clicked'),
			COUNT(*) FILTER (WHERE event_type = 'submitted_data'),
			COUNT(*) FILTER (WHERE event_type = 'reported')
		FROM events WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if campaignID != nil {
		q += ` AND campaign_id = $2`
		args = append(args, *campaignID)
	}
	q += ` GROUP BY day ORDER BY day ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &Timeline{Series: []TimelinePoint{}}
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.Date, &p.Sent, &p.Opened, &p.Clicked, &p.Submitted, &p.Reported); err != nil {
			return nil, err
		}
		out.Series = append(out.Series, p)
		out.Totals.Sent += p.Sent
		out.Totals.Opened += p.Opened
		out.Totals.Clicked += p.Clicked
		out.Totals.Submitted += p.Submitted
		out.Totals.Reported += p.Reported
	}
	return out, rows.Err()
}

// Heatmap buckets events by weekday and hour of day (UTC). The store numbers
// days 1=Sunday..7=Saturday; the query keeps that numbering and the engine
// shifts it to the 0-based API convention before returning.
func (r *Repository) Heatmap(ctx context.Context, tenantID uuid.UUID, campaignID *int64, eventType models.EventType) ([]HeatmapCell, error) {
	q := `SELECT EXTRACT(DOW FROM occurred_at AT TIME ZONE 'UTC')::int + 1 AS dow,
			EXTRACT(HOUR FROM occurred_at AT TIME ZONE 'UTC')::int AS hour,
			COUNT(*)
		FROM events WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	n := 1
	if campaignID != nil {
		n++
		q += ` AND campaign_id = $2`
		args = append(args, *campaignID)
	}
	if eventType != "" {
		n++
		if n == 2 {
			q += ` AND event_type = $2`
		} else {
			q += ` AND event_type = $3`
		}
		args = append(args, eventType)
	}
	q += ` GROUP BY dow, hour ORDER BY dow, hour`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := []HeatmapCell{}
	for rows.Next() {
		var nativeDay int
		var cell HeatmapCell
		if err := rows.Scan(&nativeDay, &cell.Hour, &cell.Count); err != nil {
			return nil, err
		}
		cell.Weekday = NormalizeWeekday(nativeDay)
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

// NormalizeWeekday converts the store-native 1=Sunday..7=Saturday day number
// to the API's 0=Sunday..6=Saturday.
func NormalizeWeekday(native int) int {
	return native - 1
}
