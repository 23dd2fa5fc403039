package reports

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/pkg/response"
)

// Handler serves the aggregation endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func parseCampaignID(c *gin.Context) (*int64, bool) {
	v := c.Query("campaign_id")
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid campaign_id")
		return nil, false
	}
	return &id, true
}

// Timeline returns per-day event counts for the tenant, optionally scoped to
// one campaign.
func (h *Handler) Timeline(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	campaignID, ok := parseCampaignID(c)
	if !ok {
		return
	}
	tl, err := h.repo.Timeline(c.Request.Context(), tctx.TenantID, campaignID)
	if err != nil {
		h.logger.Error("timeline query failed", zap.Error(err))
		response.Internal(c, "failed to compute timeline")
		return
	}
	response.OK(c, tl)
}

// Heatmap returns weekday/hour event counts. Optional filters: campaign_id,
// event_type.
func (h *Handler) Heatmap(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	campaignID, ok := parseCampaignID(c)
	if !ok {
		return
	}

	var eventType models.EventType
	if v := c.Query("event_type"); v != "" {
		eventType = models.EventType(v)
		if eventType.FunnelDepth() < 0 {
			response.BadRequest(c, "invalid event_type")
			return
		}
	}

	cells, err := h.repo.Heatmap(c.Request.Context(), tctx.TenantID, campaignID, eventType)
	if err != nil {
		h.logger.Error("heatmap query failed", zap.Error(err))
		response.Internal(c, "failed to compute heatmap")
		return
	}
	response.OK(c, cells)
}
