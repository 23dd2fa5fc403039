package gateway

import (
	"context"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/upstream"
	"github.com/phishgate/backend/pkg/response"
)

// TenantLookup loads tenant settings for plan-limit enforcement.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// Handler exposes the proxied upstream resource API. Campaign routes go
// through the gateway's cache-backed flow; the remaining families are plain
// proxies with shared error mapping.
type Handler struct {
	gw       *Gateway
	tenants  TenantLookup
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewHandler(gw *Gateway, tenants TenantLookup, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{gw: gw, tenants: tenants, recorder: recorder, logger: logger}
}

// respondUpstreamError maps classified upstream failures onto the API
// surface: definitive rejections pass the upstream status through, transport
// failures become 503.
func respondUpstreamError(c *gin.Context, err error) {
	if rej, ok := upstream.IsRejected(err); ok {
		msg := string(rej.Body)
		if msg == "" {
			msg = "upstream rejected the request"
		}
		response.Status(c, rej.Status, msg)
		return
	}
	if upstream.IsUnavailable(err) {
		response.ServiceUnavailable(c, "upstream service unavailable")
		return
	}
	response.Internal(c, "upstream request failed")
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid resource id")
		return 0, false
	}
	return id, true
}

func (h *Handler) auditMutation(c *gin.Context, tctx *models.TenantContext, eventType, resourceType string, id int64, desc string) {
	principal := middleware.MustPrincipal(c)
	h.recorder.Record(c.Request.Context(), &models.AuditLogEntry{
		TenantID:     tctx.TenantID,
		UserID:       &principal.ID,
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(id, 10),
		Description:  desc,
	})
}

// Campaigns

func (h *Handler) ListCampaigns(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	api := h.gw.Client(c.Request.Context(), tctx)
	list, err := h.gw.ListCampaigns(c.Request.Context(), api, tctx)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	if list.Partial {
		response.PartialOK(c, list.Campaigns, list.LastSynced)
		return
	}
	response.OK(c, list.Campaigns)
}

func (h *Handler) GetCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	api := h.gw.Client(c.Request.Context(), tctx)
	read, err := h.gw.GetCampaign(c.Request.Context(), api, tctx, id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	if read.Partial {
		response.PartialOK(c, read.Campaign, read.LastSynced)
		return
	}
	response.OK(c, read.Campaign)
}

func (h *Handler) GetCampaignResults(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	api := h.gw.Client(c.Request.Context(), tctx)
	read, err := h.gw.GetCampaignResults(c.Request.Context(), api, tctx, id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	if read.Partial {
		response.PartialOK(c, read.Campaign, read.LastSynced)
		return
	}
	response.OK(c, read.Campaign)
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req upstream.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		response.BadRequest(c, "campaign name is required")
		return
	}

	tctx := middleware.MustTenantContext(c)
	api := h.gw.Client(c.Request.Context(), tctx)

	if ok := h.checkCampaignLimit(c, api, tctx); !ok {
		return
	}

	principal := middleware.MustPrincipal(c)
	created, err := h.gw.CreateCampaign(c.Request.Context(), api, tctx, principal.ID, req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.Created(c, created)
}

// checkCampaignLimit enforces the tenant's plan limit against the live
// campaign count. When the live count cannot be fetched the create proceeds;
// the create call itself will surface the outage.
func (h *Handler) checkCampaignLimit(c *gin.Context, api CampaignAPI, tctx *models.TenantContext) bool {
	tenant, err := h.tenants.GetByID(c.Request.Context(), tctx.TenantID)
	if err != nil || tenant.Settings.MaxCampaigns <= 0 {
		return true
	}
	live, err := api.ListCampaigns(c.Request.Context())
	if err != nil {
		return true
	}
	if len(live) >= tenant.Settings.MaxCampaigns {
		response.Forbidden(c, "campaign limit reached for this tenant")
		return false
	}
	return true
}

func (h *Handler) CompleteCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	api := h.gw.Client(c.Request.Context(), tctx)
	principal := middleware.MustPrincipal(c)
	if err := h.gw.CompleteCampaign(c.Request.Context(), api, tctx, principal.ID, id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, gin.H{"completed": true})
}

func (h *Handler) DeleteCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	api := h.gw.Client(c.Request.Context(), tctx)
	principal := middleware.MustPrincipal(c)
	if err := h.gw.DeleteCampaign(c.Request.Context(), api, tctx, principal.ID, id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.NoContent(c)
}

// Groups

func (h *Handler) ListGroups(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ListGroups(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).GetGroup(c.Request.Context(), id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req upstream.Group
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).CreateGroup(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceCreated, "group", out.ID, "group created: "+out.Name)
	response.Created(c, out)
}

func (h *Handler) UpdateGroup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req upstream.Group
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req.ID = id
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).UpdateGroup(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceUpdated, "group", id, "group updated: "+out.Name)
	response.OK(c, out)
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	if err := h.gw.Client(c.Request.Context(), tctx).DeleteGroup(c.Request.Context(), id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceDeleted, "group", id, "group deleted")
	response.NoContent(c)
}

// ImportGroupCSV forwards a recipient CSV to the upstream parser and returns
// the extracted targets. Accepts a multipart "file" field or a raw CSV body.
func (h *Handler) ImportGroupCSV(c *gin.Context) {
	content, err := readUpload(c)
	if err != nil {
		response.BadRequest(c, "could not read CSV content")
		return
	}
	if len(content) == 0 {
		response.BadRequest(c, "empty CSV content")
		return
	}
	tctx := middleware.MustTenantContext(c)
	targets, err := h.gw.Client(c.Request.Context(), tctx).ImportGroupCSV(c.Request.Context(), content)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, targets)
}

func readUpload(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

// Templates

func (h *Handler) ListTemplates(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ListTemplates(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).GetTemplate(c.Request.Context(), id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req upstream.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).CreateTemplate(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceCreated, "template", out.ID, "template created: "+out.Name)
	response.Created(c, out)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req upstream.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req.ID = id
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).UpdateTemplate(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceUpdated, "template", id, "template updated: "+out.Name)
	response.OK(c, out)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	if err := h.gw.Client(c.Request.Context(), tctx).DeleteTemplate(c.Request.Context(), id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceDeleted, "template", id, "template deleted")
	response.NoContent(c)
}

type importEmailRequest struct {
	Content      string `json:"content" binding:"required"`
	ConvertLinks bool   `json:"convert_links"`
}

// ImportEmail converts a raw RFC 2822 email into template content upstream.
func (h *Handler) ImportEmail(c *gin.Context) {
	var req importEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ImportEmail(c.Request.Context(), req.Content, req.ConvertLinks)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

// Landing pages

func (h *Handler) ListPages(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ListPages(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) GetPage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).GetPage(c.Request.Context(), id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) CreatePage(c *gin.Context) {
	var req upstream.Page
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).CreatePage(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceCreated, "page", out.ID, "landing page created: "+out.Name)
	response.Created(c, out)
}

func (h *Handler) UpdatePage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req upstream.Page
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req.ID = id
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).UpdatePage(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceUpdated, "page", id, "landing page updated: "+out.Name)
	response.OK(c, out)
}

func (h *Handler) DeletePage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	if err := h.gw.Client(c.Request.Context(), tctx).DeletePage(c.Request.Context(), id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceDeleted, "page", id, "landing page deleted")
	response.NoContent(c)
}

type importSiteRequest struct {
	URL              string `json:"url" binding:"required"`
	IncludeResources bool   `json:"include_resources"`
}

// ImportSite clones a live site into landing page HTML via the upstream
// importer.
func (h *Handler) ImportSite(c *gin.Context) {
	var req importSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ImportSite(c.Request.Context(), req.URL, req.IncludeResources)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

// SMTP sending profiles

func (h *Handler) ListSMTPProfiles(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ListSMTPProfiles(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) GetSMTPProfile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).GetSMTPProfile(c.Request.Context(), id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) CreateSMTPProfile(c *gin.Context) {
	var req upstream.SMTPProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).CreateSMTPProfile(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceCreated, "smtp", out.ID, "sending profile created: "+out.Name)
	response.Created(c, out)
}

func (h *Handler) UpdateSMTPProfile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req upstream.SMTPProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req.ID = id
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).UpdateSMTPProfile(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceUpdated, "smtp", id, "sending profile updated: "+out.Name)
	response.OK(c, out)
}

func (h *Handler) DeleteSMTPProfile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	if err := h.gw.Client(c.Request.Context(), tctx).DeleteSMTPProfile(c.Request.Context(), id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceDeleted, "smtp", id, "sending profile deleted")
	response.NoContent(c)
}

// Upstream user accounts (tenant admins only; routes enforce the role)

func (h *Handler) ListUpstreamUsers(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).ListUsers(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) GetUpstreamUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).GetUser(c.Request.Context(), id)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) CreateUpstreamUser(c *gin.Context) {
	var req upstream.APIUser
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).CreateUser(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceCreated, "upstream_user", out.ID, "upstream user created: "+out.Username)
	response.Created(c, out)
}

func (h *Handler) UpdateUpstreamUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req upstream.APIUser
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req.ID = id
	tctx := middleware.MustTenantContext(c)
	out, err := h.gw.Client(c.Request.Context(), tctx).UpdateUser(c.Request.Context(), req)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceUpdated, "upstream_user", id, "upstream user updated: "+out.Username)
	response.OK(c, out)
}

func (h *Handler) DeleteUpstreamUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tctx := middleware.MustTenantContext(c)
	if err := h.gw.Client(c.Request.Context(), tctx).DeleteUser(c.Request.Context(), id); err != nil {
		respondUpstreamError(c, err)
		return
	}
	h.auditMutation(c, tctx, models.AuditResourceDeleted, "upstream_user", id, "upstream user deleted")
	response.NoContent(c)
}
