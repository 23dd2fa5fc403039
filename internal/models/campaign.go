package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses mirrored from the upstream service.
const (
	CampaignStatusQueued     = "Queued"
	CampaignStatusInProgress = "In progress"
	CampaignStatusCompleted  = "Completed"
)

// CampaignStats holds denormalized event counters for a cached campaign.
// The raw event log is the source of truth; these counters are a rebuildable
// materialized view maintained by the ingestion pipeline.
type CampaignStats struct {
	Sent      int `json:"sent"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
	Submitted int `json:"submitted"`
	Reported  int `json:"reported"`
}

// Campaign is the last-known-good mirror of an upstream campaign, keyed by
// (tenant_id, upstream_id). It is a cache, never the system of record:
// LastSynced lets consumers detect staleness.
type Campaign struct {
	ID            uuid.UUID        `json:"id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	UpstreamID    int64            `json:"upstream_id"`
	Name          string           `json:"name"`
	Status        string           `json:"status"`
	Stats         CampaignStats    `json:"stats"`
	Results       []CampaignResult `json:"results,omitempty"`
	LaunchDate    *time.Time       `json:"launch_date,omitempty"`
	CompletedDate *time.Time       `json:"completed_date,omitempty"`
	LastSynced    time.Time        `json:"last_synced"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CampaignResult is the per-recipient state within a cached campaign.
type CampaignResult struct {
	Email      string     `json:"email"`
	Status     string     `json:"status"`
	OpenDate   *time.Time `json:"open_date,omitempty"`
	ClickDate  *time.Time `json:"click_date,omitempty"`
	SubmitDate *time.Time `json:"submit_date,omitempty"`
	ReportDate *time.Time `json:"report_date,omitempty"`
}
