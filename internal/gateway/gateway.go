// Package gateway orchestrates per-request upstream access: it builds a
// tenant-scoped upstream client, executes the call, mirrors successful
// responses into the local cache, and serves degraded reads from that cache
// when the upstream is unreachable. Writes never degrade.
package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/upstream"
)

// CampaignAPI is the slice of the upstream client the gateway's campaign
// flow depends on. *upstream.Client satisfies it; tests substitute fakes.
type CampaignAPI interface {
	ListCampaigns(ctx context.Context) ([]upstream.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*upstream.Campaign, error)
	GetCampaignResults(ctx context.Context, id int64) (*upstream.Campaign, error)
	CreateCampaign(ctx context.Context, req upstream.CampaignRequest) (*upstream.Campaign, error)
	CompleteCampaign(ctx context.Context, id int64) error
	DeleteCampaign(ctx context.Context, id int64) error
}

// ClientFactory builds a tenant-scoped upstream client from a resolved
// tenant context.
type ClientFactory func(tctx *models.TenantContext) *upstream.Client

// CampaignCache is the slice of the cache repository the gateway reads and
// writes through. *cache.Repository satisfies it.
type CampaignCache interface {
	Upsert(ctx context.Context, c *models.Campaign) error
	ReplaceResults(ctx context.Context, tenantID uuid.UUID, upstreamID int64, results []models.CampaignResult) error
	Get(ctx context.Context, tenantID uuid.UUID, upstreamID int64) (*models.Campaign, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]models.Campaign, error)
	OldestSync(ctx context.Context, tenantID uuid.UUID) (time.Time, error)
	Delete(ctx context.Context, tenantID uuid.UUID, upstreamID int64) error
}

// Gateway executes upstream operations for one resolved tenant context.
type Gateway struct {
	cache    CampaignCache
	recorder *audit.Recorder
	opts     upstream.Options
	logger   *zap.Logger
	factory  ClientFactory
}

// New creates a gateway.
func New(cacheRepo CampaignCache, recorder *audit.Recorder, opts upstream.Options, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{cache: cacheRepo, recorder: recorder, opts: opts, logger: logger}
	g.factory = func(tctx *models.TenantContext) *upstream.Client {
		return upstream.New(tctx.TenantID, tctx.Credentials, g.opts)
	}
	return g
}

// Client builds the upstream client for a tenant context. Calls made with
// TLS verification disabled leave an audit trail.
func (g *Gateway) Client(ctx context.Context, tctx *models.TenantContext) *upstream.Client {
	client := g.factory(tctx)
	if !tctx.Credentials.VerifyTLS && g.recorder != nil {
		g.recorder.Record(ctx, &models.AuditLogEntry{
			TenantID:     tctx.TenantID,
			EventType:    models.AuditInsecureTLSCall,
			ResourceType: "upstream",
			Description:  "upstream call with TLS verification disabled",
		})
	}
	return client
}

// CampaignList is a campaign read result, possibly served from cache.
type CampaignList struct {
	Campaigns  []models.Campaign
	Partial    bool
	LastSynced time.Time
}

func fromUpstream(tenantID uuid.UUID, uc upstream.Campaign) *models.Campaign {
	c := &models.Campaign{
		TenantID:      tenantID,
		UpstreamID:    uc.ID,
		Name:          uc.Name,
		Status:        uc.Status,
		LaunchDate:    uc.LaunchDate,
		CompletedDate: uc.CompletedDate,
	}
	for _, res := range uc.Results {
		c.Results = append(c.Results, models.CampaignResult{Email: res.Email, Status: res.Status})
	}
	return c
}

// mirror writes a successful upstream campaign snapshot through to the cache.
// Cache failures are logged, never surfaced: the live response is already in
// hand.
func (g *Gateway) mirror(ctx context.Context, tenantID uuid.UUID, uc upstream.Campaign) *models.Campaign {
	c := fromUpstream(tenantID, uc)
	if err := g.cache.Upsert(ctx, c); err != nil {
		g.logger.Warn("cache write-through failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("upstream_id", uc.ID),
			zap.Error(err))
		return c
	}
	if len(c.Results) > 0 {
		if err := g.cache.ReplaceResults(ctx, tenantID, uc.ID, c.Results); err != nil {
			g.logger.Warn("cache results write-through failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Int64("upstream_id", uc.ID),
				zap.Error(err))
		}
	}
	return c
}

// ListCampaigns reads the tenant's campaigns, falling back to the cached
// snapshot (tagged partial) when the upstream is unavailable. A fallback with
// an empty cache propagates the upstream failure.
func (g *Gateway) ListCampaigns(ctx context.Context, api CampaignAPI, tctx *models.TenantContext) (*CampaignList, error) {
	live, err := api.ListCampaigns(ctx)
	if err == nil {
		out := make([]models.Campaign, 0, len(live))
		for _, uc := range live {
			out = append(out, *g.mirror(ctx, tctx.TenantID, uc))
		}
		return &CampaignList{Campaigns: out}, nil
	}
	if !upstream.IsUnavailable(err) {
		return nil, err
	}

	cached, cacheErr := g.cache.List(ctx, tctx.TenantID)
	if cacheErr != nil || len(cached) == 0 {
		return nil, err
	}
	lastSynced, _ := g.cache.OldestSync(ctx, tctx.TenantID)
	g.logger.Info("serving campaign list from cache",
		zap.String("tenant_id", tctx.TenantID.String()),
		zap.Time("last_synced", lastSynced))
	return &CampaignList{Campaigns: cached, Partial: true, LastSynced: lastSynced}, nil
}

// CampaignRead is a single-campaign read result.
type CampaignRead struct {
	Campaign   *models.Campaign
	Partial    bool
	LastSynced time.Time
}

// GetCampaign reads one campaign with results, cache-backed on outage.
func (g *Gateway) GetCampaign(ctx context.Context, api CampaignAPI, tctx *models.TenantContext, id int64) (*CampaignRead, error) {
	live, err := api.GetCampaign(ctx, id)
	if err == nil {
		return &CampaignRead{Campaign: g.mirror(ctx, tctx.TenantID, *live)}, nil
	}
	if !upstream.IsUnavailable(err) {
		return nil, err
	}
	return g.cachedRead(ctx, tctx, id, err)
}

// GetCampaignResults reads one campaign's recipient results, cache-backed on
// outage.
func (g *Gateway) GetCampaignResults(ctx context.Context, api CampaignAPI, tctx *models.TenantContext, id int64) (*CampaignRead, error) {
	live, err := api.GetCampaignResults(ctx, id)
	if err == nil {
		return &CampaignRead{Campaign: g.mirror(ctx, tctx.TenantID, *live)}, nil
	}
	if !upstream.IsUnavailable(err) {
		return nil, err
	}
	return g.cachedRead(ctx, tctx, id, err)
}

func (g *Gateway) cachedRead(ctx context.Context, tctx *models.TenantContext, id int64, upstreamErr error) (*CampaignRead, error) {
	cached, cacheErr := g.cache.Get(ctx, tctx.TenantID, id)
	if cacheErr != nil || cached == nil {
		return nil, upstreamErr
	}
	g.logger.Info("serving campaign from cache",
		zap.String("tenant_id", tctx.TenantID.String()),
		zap.Int64("upstream_id", id))
	return &CampaignRead{Campaign: cached, Partial: true, LastSynced: cached.LastSynced}, nil
}

// CreateCampaign creates a campaign upstream. Writes fail closed: no cache
// fallback. On success the new state is mirrored synchronously so degraded
// reads stay consistent.
func (g *Gateway) CreateCampaign(ctx context.Context, api CampaignAPI, tctx *models.TenantContext, actor uuid.UUID, req upstream.CampaignRequest) (*models.Campaign, error) {
	created, err := api.CreateCampaign(ctx, req)
	if err != nil {
		return nil, err
	}
	c := g.mirror(ctx, tctx.TenantID, *created)
	g.auditMutation(ctx, tctx, actor, models.AuditResourceCreated, "campaign", created.ID, "campaign created: "+created.Name)
	return c, nil
}

// CompleteCampaign marks a campaign completed upstream and refreshes the
// cached snapshot.
func (g *Gateway) CompleteCampaign(ctx context.Context, api CampaignAPI, tctx *models.TenantContext, actor uuid.UUID, id int64) error {
	if err := api.CompleteCampaign(ctx, id); err != nil {
		return err
	}
	if refreshed, err := api.GetCampaign(ctx, id); err == nil {
		g.mirror(ctx, tctx.TenantID, *refreshed)
	}
	g.auditMutation(ctx, tctx, actor, models.AuditResourceUpdated, "campaign", id, "campaign completed")
	return nil
}

// DeleteCampaign deletes a campaign upstream and drops the cached copy.
func (g *Gateway) DeleteCampaign(ctx context.Context, api CampaignAPI, tctx *models.TenantContext, actor uuid.UUID, id int64) error {
	if err := api.DeleteCampaign(ctx, id); err != nil {
		return err
	}
	if err := g.cache.Delete(ctx, tctx.TenantID, id); err != nil {
		g.logger.Warn("cache delete failed",
			zap.String("tenant_id", tctx.TenantID.String()),
			zap.Int64("upstream_id", id),
			zap.Error(err))
	}
	g.auditMutation(ctx, tctx, actor, models.AuditResourceDeleted, "campaign", id, "campaign deleted")
	return nil
}

func (g *Gateway) auditMutation(ctx context.Context, tctx *models.TenantContext, actor uuid.UUID, eventType, resourceType string, id int64, desc string) {
	if g.recorder == nil {
		return
	}
	g.recorder.Record(ctx, &models.AuditLogEntry{
		TenantID:     tctx.TenantID,
		UserID:       &actor,
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(id, 10),
		Description:  desc,
	})
}
