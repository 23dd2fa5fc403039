// Package events ingests delivery and engagement notifications: classify the
// raw message, append to the immutable event stream, then update the derived
// campaign cache and the live feed on a best-effort basis.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/models"
)

// EventStore is the slice of the repository the pipeline writes through.
type EventStore interface {
	Insert(ctx context.Context, e *models.Event) error
}

// CacheApplier folds a classified event into the derived campaign cache.
// Returns false when the campaign is not cached; that is not an error.
type CacheApplier interface {
	ApplyEvent(ctx context.Context, tenantID uuid.UUID, upstreamID int64, email string, et models.EventType, occurredAt time.Time) (bool, error)
}

// Publisher fans a persisted event out to live subscribers.
type Publisher interface {
	PublishEvent(ctx context.Context, e *models.Event)
}

// Ingest is one raw notification entering the pipeline.
type Ingest struct {
	CampaignID int64
	Email      string
	Message    string
	IPAddress  string
	UserAgent  string
	Payload    json.RawMessage
	OccurredAt time.Time
}

var (
	// ErrMissingCampaign rejects notifications without a campaign reference.
	ErrMissingCampaign = errors.New("events: campaign id is required")
	// ErrMissingEmail rejects notifications without a recipient.
	ErrMissingEmail = errors.New("events: recipient email is required")
)

// Pipeline is the ingestion pipeline. The event stream is the system of
// record: the insert must succeed, while the cache fold and the live fanout
// are best-effort and never fail an ingest.
type Pipeline struct {
	store     EventStore
	cache     CacheApplier
	publisher Publisher
	logger    *zap.Logger
}

// NewPipeline creates an ingestion pipeline. publisher may be nil.
func NewPipeline(store EventStore, cacheApplier CacheApplier, publisher Publisher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: store, cache: cacheApplier, publisher: publisher, logger: logger}
}

// IngestEvent validates, classifies, and persists one notification for a
// tenant, then folds it into the campaign cache and publishes it live.
func (p *Pipeline) IngestEvent(ctx context.Context, tenantID uuid.UUID, in Ingest) (*models.Event, error) {
	if in.CampaignID <= 0 {
		return nil, ErrMissingCampaign
	}
	if in.Email == "" {
		return nil, ErrMissingEmail
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	e := &models.Event{
		TenantID:   tenantID,
		CampaignID: in.CampaignID,
		Email:      in.Email,
		EventType:  Classify(in.Message),
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Payload:    in.Payload,
		OccurredAt: occurredAt,
	}
	if err := p.store.Insert(ctx, e); err != nil {
		return nil, err
	}

	applied, err := p.cache.ApplyEvent(ctx, tenantID, e.CampaignID, e.Email, e.EventType, e.OccurredAt)
	if err != nil {
		p.logger.Warn("cache fold failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("campaign_id", e.CampaignID),
			zap.String("event_type", string(e.EventType)),
			zap.Error(err))
	} else if !applied {
		p.logger.Debug("event for uncached campaign",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("campaign_id", e.CampaignID))
	}

	if p.publisher != nil {
		p.publisher.PublishEvent(ctx, e)
	}
	return e, nil
}
