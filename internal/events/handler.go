package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/pkg/queue"
	"github.com/phishgate/backend/pkg/response"
	"github.com/phishgate/backend/pkg/storage"
)

// HeaderWebhookToken authenticates inbound webhook deliveries. Each tenant
// has its own token; there is no shared or fallback token.
const HeaderWebhookToken = "X-Webhook-Token"

// TokenResolver maps a webhook token to its tenant.
type TokenResolver interface {
	GetByWebhookToken(ctx context.Context, token string) (*models.Tenant, error)
}

// Handler serves the webhook ingest endpoint and the authenticated event API.
// The archives client may be nil when object storage is not configured.
type Handler struct {
	pipeline *Pipeline
	repo     *Repository
	tenants  TokenResolver
	queue    *queue.Queue
	archives *storage.S3
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewHandler(pipeline *Pipeline, repo *Repository, tenants TokenResolver, q *queue.Queue, archives *storage.S3, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{pipeline: pipeline, repo: repo, tenants: tenants, queue: q, archives: archives, recorder: recorder, logger: logger}
}

// webhookPayload mirrors the upstream engine's outbound webhook body. Details
// carries the raw browser payload when the event came from a click or submit.
type webhookPayload struct {
	CampaignID int64           `json:"campaign_id"`
	Email      string          `json:"email"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	Time       *time.Time      `json:"time,omitempty"`
}

// details is the browser block nested inside a payload's details field.
type webhookDetails struct {
	Browser struct {
		Address   string `json:"address"`
		UserAgent string `json:"user-agent"`
	} `json:"browser"`
}

// Webhook receives one notification from the upstream engine.
//
// Token authentication is the trust boundary: an unknown token is rejected.
// Past that boundary the endpoint acknowledges unconditionally; a failed
// ingest is queued for worker reconciliation rather than bounced, because the
// upstream engine does not redeliver.
func (h *Handler) Webhook(c *gin.Context) {
	token := c.GetHeader(HeaderWebhookToken)
	if token == "" {
		response.Unauthorized(c, "missing webhook token")
		return
	}
	tenant, err := h.tenants.GetByWebhookToken(c.Request.Context(), token)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Unauthorized(c, "unknown webhook token")
			return
		}
		h.logger.Error("webhook token lookup failed", zap.Error(err))
		response.Internal(c, "token lookup failed")
		return
	}
	if tenant.Status != models.TenantStatusActive {
		response.Forbidden(c, "tenant is not active")
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid webhook body")
		return
	}

	in := Ingest{
		CampaignID: payload.CampaignID,
		Email:      payload.Email,
		Message:    payload.Message,
		Payload:    payload.Details,
	}
	if payload.Time != nil {
		in.OccurredAt = *payload.Time
	}
	if len(payload.Details) > 0 {
		var d webhookDetails
		if err := json.Unmarshal(payload.Details, &d); err == nil {
			in.IPAddress = d.Browser.Address
			in.UserAgent = d.Browser.UserAgent
		}
	}

	if _, err := h.pipeline.IngestEvent(c.Request.Context(), tenant.ID, in); err != nil {
		h.logger.Warn("webhook ingest failed, queueing for reconciliation",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Int64("campaign_id", in.CampaignID),
			zap.Error(err))
		qErr := h.queue.EnqueueWebhookIngest(c.Request.Context(), queue.WebhookIngestPayload{
			TenantID:   tenant.ID,
			CampaignID: in.CampaignID,
			Email:      in.Email,
			Message:    in.Message,
			IPAddress:  in.IPAddress,
			UserAgent:  in.UserAgent,
			Payload:    in.Payload,
			OccurredAt: in.OccurredAt,
		})
		if qErr != nil {
			h.logger.Error("webhook reconciliation enqueue failed",
				zap.String("tenant_id", tenant.ID.String()),
				zap.Error(qErr))
		}
	}

	// The sender never redelivers, so the ack does not depend on ingest
	// success.
	response.OK(c, gin.H{"received": true})
}

// List returns the tenant's recent events, newest first. Optional query
// params: campaign_id, limit.
func (h *Handler) List(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)

	var campaignID *int64
	if v := c.Query("campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(c, "invalid campaign_id")
			return
		}
		campaignID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.repo.List(c.Request.Context(), tctx.TenantID, campaignID, limit)
	if err != nil {
		h.logger.Error("event list failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Clear schedules an archive-then-delete of the tenant's events. The actual
// export to object storage and the bulk delete run in the worker; the API
// returns as soon as the job is queued.
func (h *Handler) Clear(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	principal := middleware.MustPrincipal(c)

	var campaignID *int64
	if v := c.Query("campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(c, "invalid campaign_id")
			return
		}
		campaignID = &id
	}

	err := h.queue.EnqueueEventArchive(c.Request.Context(), queue.EventArchivePayload{
		TenantID:    tctx.TenantID,
		CampaignID:  campaignID,
		RequestedBy: principal.ID,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("archive enqueue failed", zap.Error(err))
		response.Internal(c, "failed to schedule event archive")
		return
	}

	desc := "event stream archive and clear scheduled"
	resourceID := ""
	if campaignID != nil {
		resourceID = strconv.FormatInt(*campaignID, 10)
		desc = "campaign event archive and clear scheduled"
	}
	h.recorder.Record(c.Request.Context(), &models.AuditLogEntry{
		TenantID:     tctx.TenantID,
		UserID:       &principal.ID,
		EventType:    models.AuditEventsCleared,
		ResourceType: "events",
		ResourceID:   resourceID,
		Description:  desc,
	})

	resp := gin.H{"scheduled": true}
	if h.repo != nil {
		// pending = the full stream; the archive job drains everything up to now
		if pending, err := h.repo.CountSince(c.Request.Context(), tctx.TenantID, time.Time{}); err == nil {
			resp["events"] = pending
		}
	}
	response.OK(c, resp)
}

// ArchiveURL returns a time-limited download link for an archive object
// previously written by the worker. The object key is recorded in the audit
// log when the export completes.
func (h *Handler) ArchiveURL(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)

	key := c.Query("key")
	if key == "" {
		response.BadRequest(c, "key is required")
		return
	}
	// keys are tenant-prefixed; never presign another tenant's objects
	if !strings.HasPrefix(key, storage.FolderArchives+"/"+tctx.TenantID.String()+"/") {
		response.Forbidden(c, "archive does not belong to this tenant")
		return
	}
	if h.archives == nil {
		response.ServiceUnavailable(c, "archive storage is not configured")
		return
	}

	const expiry = 15 * time.Minute
	url, err := h.archives.PresignDownload(c.Request.Context(), key, expiry)
	if err != nil {
		h.logger.Error("archive presign failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to presign archive download")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_seconds": int(expiry.Seconds())})
}
