package tenants

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/pkg/response"
)

// UserLookup resolves users by email for member management. Satisfied by the
// auth repository.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handler handles tenant administration endpoints.
type Handler struct {
	repo     *Repository
	users    UserLookup
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewHandler creates a tenant handler.
func NewHandler(repo *Repository, users UserLookup, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, users: users, recorder: recorder, logger: logger}
}

// CreateTenantRequest is the body for POST /tenants (super-admin onboarding).
type CreateTenantRequest struct {
	Name        string                `json:"name" binding:"required"`
	DisplayName string                `json:"display_name" binding:"required"`
	Plan        string                `json:"plan"`
	Status      string                `json:"status"`
	Settings    models.TenantSettings `json:"settings"`
}

// Create handles POST /tenants. The slug is immutable after this point.
func (h *Handler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !models.ValidSlug(req.Name) {
		response.BadRequest(c, "tenant name must be lowercase alphanumeric with hyphens")
		return
	}
	status := models.TenantStatusPending
	switch req.Status {
	case "":
	case string(models.TenantStatusActive), string(models.TenantStatusSuspended), string(models.TenantStatusPending):
		status = models.TenantStatus(req.Status)
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	if existing, err := h.repo.GetBySlug(c.Request.Context(), req.Name); err == nil && existing != nil {
		response.Conflict(c, "tenant name already taken")
		return
	}

	tenant := &models.Tenant{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Settings:    req.Settings,
		Status:      status,
		Plan:        req.Plan,
	}
	if tenant.Plan == "" {
		tenant.Plan = "free"
	}
	if err := h.repo.Create(c.Request.Context(), tenant); err != nil {
		h.logger.Error("create tenant failed", zap.Error(err))
		response.Internal(c, "failed to create tenant")
		return
	}

	principal := middleware.MustPrincipal(c)
	userID := principal.ID
	h.recorder.Record(c.Request.Context(), &models.AuditLogEntry{
		TenantID:     tenant.ID,
		UserID:       &userID,
		EventType:    models.AuditTenantCreated,
		ResourceType: "tenant",
		ResourceID:   tenant.ID.String(),
		Description:  "tenant onboarded: " + tenant.Name,
	})
	response.Created(c, tenant)
}

// List handles GET /tenants (super-admin).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list tenants")
		return
	}
	response.OK(c, list)
}

// Get handles GET /tenants/:id (super-admin).
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "tenant not found")
		return
	}
	response.OK(c, tenant)
}

// UpdateTenantRequest is the body for PATCH /tenants/:id. The slug cannot change.
type UpdateTenantRequest struct {
	DisplayName string                 `json:"display_name"`
	Plan        string                 `json:"plan"`
	Settings    *models.TenantSettings `json:"settings"`
}

// Update handles PATCH /tenants/:id (super-admin): profile and/or settings.
// Writing Settings is the credential rotation path.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	ctx := c.Request.Context()
	tenant, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.NotFound(c, "tenant not found")
		return
	}

	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.DisplayName != "" || req.Plan != "" {
		name := req.DisplayName
		if name == "" {
			name = tenant.DisplayName
		}
		if err := h.repo.UpdateProfile(ctx, id, name, req.Plan); err != nil {
			response.Internal(c, "failed to update tenant")
			return
		}
	}
	if req.Settings != nil {
		if err := h.repo.UpdateSettings(ctx, id, *req.Settings); err != nil {
			response.Internal(c, "failed to update tenant settings")
			return
		}
	}

	principal := middleware.MustPrincipal(c)
	userID := principal.ID
	h.recorder.Record(ctx, &models.AuditLogEntry{
		TenantID:     id,
		UserID:       &userID,
		EventType:    models.AuditTenantUpdated,
		ResourceType: "tenant",
		ResourceID:   id.String(),
		Description:  "tenant updated",
	})

	updated, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.Internal(c, "failed to reload tenant")
		return
	}
	response.OK(c, updated)
}

// UpdateStatusRequest is the body for PATCH /tenants/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /tenants/:id/status (super-admin). Suspension
// takes effect at the next resolve: every request for the tenant fails with
// TenantInactive.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	status := models.TenantStatus(req.Status)
	switch status {
	case models.TenantStatusActive, models.TenantStatusSuspended, models.TenantStatusPending:
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.repo.GetByID(ctx, id); err != nil {
		response.NotFound(c, "tenant not found")
		return
	}
	if err := h.repo.UpdateStatus(ctx, id, status); err != nil {
		response.Internal(c, "failed to update status")
		return
	}

	eventType := models.AuditTenantUpdated
	if status == models.TenantStatusSuspended {
		eventType = models.AuditTenantSuspended
	}
	principal := middleware.MustPrincipal(c)
	userID := principal.ID
	h.recorder.Record(ctx, &models.AuditLogEntry{
		TenantID:     id,
		UserID:       &userID,
		EventType:    eventType,
		ResourceType: "tenant",
		ResourceID:   id.String(),
		Description:  "status set to " + string(status),
	})
	response.OK(c, gin.H{"id": id, "status": status})
}

// Member management (tenant admin, scoped by the resolved tenant context)

// ListMembers handles GET /api/members.
func (h *Handler) ListMembers(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	list, err := h.repo.ListMembers(c.Request.Context(), tctx.TenantID)
	if err != nil {
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, list)
}

// AddMemberRequest is the body for POST /api/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// AddMember handles POST /api/members: attach an existing user to the tenant.
func (h *Handler) AddMember(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Role != models.TenantRoleAdmin && req.Role != models.TenantRoleUser {
		response.BadRequest(c, "invalid role")
		return
	}
	ctx := c.Request.Context()

	tenant, err := h.repo.GetByID(ctx, tctx.TenantID)
	if err != nil {
		response.Internal(c, "failed to load tenant")
		return
	}
	if tenant.Settings.MaxUsers > 0 {
		count, err := h.repo.CountMembers(ctx, tctx.TenantID)
		if err != nil {
			response.Internal(c, "failed to check tenant capacity")
			return
		}
		if count >= tenant.Settings.MaxUsers {
			response.Forbidden(c, "tenant user limit reached")
			return
		}
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if err := h.repo.AddMember(ctx, tctx.TenantID, user.ID, req.Role); err != nil {
		response.Internal(c, "failed to add member")
		return
	}

	h.auditMember(c, models.AuditMemberAdded, user.ID, "added with role "+req.Role)
	response.Created(c, Member{UserID: user.ID, Email: user.Email, FullName: user.FullName, Role: req.Role})
}

// RemoveMember handles DELETE /api/members/:userId (soft removal: detach only).
func (h *Handler) RemoveMember(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), tctx.TenantID, userID); err != nil {
		response.Internal(c, "failed to remove member")
		return
	}
	h.auditMember(c, models.AuditMemberRemoved, userID, "membership detached")
	response.NoContent(c)
}

// UpdateMemberRoleRequest is the body for PATCH /api/members/:userId/role.
type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateMemberRole handles PATCH /api/members/:userId/role.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Role != models.TenantRoleAdmin && req.Role != models.TenantRoleUser {
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.repo.UpdateMemberRole(c.Request.Context(), tctx.TenantID, userID, req.Role); err != nil {
		response.Internal(c, "failed to update role")
		return
	}
	h.auditMember(c, models.AuditRoleChange, userID, "tenant role set to "+req.Role)
	response.OK(c, gin.H{"user_id": userID, "role": req.Role})
}

// Settings (tenant admin, resolved-context scoped)

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	tenant, err := h.repo.GetByID(c.Request.Context(), tctx.TenantID)
	if err != nil {
		response.Internal(c, "failed to load tenant")
		return
	}
	response.OK(c, tenant.Settings)
}

// UpdateSettings handles PATCH /api/settings: tenant-admin credential
// rotation and limits.
func (h *Handler) UpdateSettings(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	var settings models.TenantSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.repo.UpdateSettings(ctx, tctx.TenantID, settings); err != nil {
		response.Internal(c, "failed to update settings")
		return
	}
	principal := middleware.MustPrincipal(c)
	userID := principal.ID
	h.recorder.Record(ctx, &models.AuditLogEntry{
		TenantID:     tctx.TenantID,
		UserID:       &userID,
		EventType:    models.AuditTenantUpdated,
		ResourceType: "tenant",
		ResourceID:   tctx.TenantID.String(),
		Description:  "settings updated",
	})
	response.OK(c, settings)
}

func (h *Handler) auditMember(c *gin.Context, eventType string, subject uuid.UUID, desc string) {
	tctx := middleware.MustTenantContext(c)
	principal := middleware.MustPrincipal(c)
	actorID := principal.ID
	h.recorder.Record(c.Request.Context(), &models.AuditLogEntry{
		TenantID:     tctx.TenantID,
		UserID:       &actorID,
		EventType:    eventType,
		ResourceType: "membership",
		ResourceID:   subject.String(),
		Description:  desc,
	})
}
