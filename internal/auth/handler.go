package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/tenants"
	"github.com/phishgate/backend/pkg/response"
	"github.com/phishgate/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register. Self-registration is
// always tenant-scoped and gated by the tenant's settings.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Tenant   string `json:"tenant" binding:"required"` // tenant slug
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     *Repository
	tenants  *tenants.Repository
	jwt      *JWTService
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, tenantRepo *tenants.Repository, jwt *JWTService, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, tenants: tenantRepo, jwt: jwt, recorder: recorder, logger: logger}
}

// Register handles POST /auth/register. The target tenant must be active,
// allow self-registration, and have capacity under its MaxUsers limit.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	tenant, err := h.tenants.GetBySlug(ctx, req.Tenant)
	if err != nil || tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}
	if tenant.Status != models.TenantStatusActive {
		response.Forbidden(c, "tenant is not active")
		return
	}
	if !tenant.Settings.AllowUserRegistration {
		response.Forbidden(c, "tenant does not allow self-registration")
		return
	}
	if tenant.Settings.MaxUsers > 0 {
		count, err := h.tenants.CountMembers(ctx, tenant.ID)
		if err != nil {
			response.Internal(c, "failed to check tenant capacity")
			return
		}
		if count >= tenant.Settings.MaxUsers {
			response.Forbidden(c, "tenant user limit reached")
			return
		}
	}

	if _, err := h.repo.GetByEmail(ctx, req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(ctx, req.Email, hash, req.FullName, models.RoleUser, &tenant.ID, models.TenantRoleUser)
	if err != nil {
		response.Internal(c, "failed to create user")
		return
	}

	userID := user.ID
	h.recorder.Record(ctx, &models.AuditLogEntry{
		TenantID:     tenant.ID,
		UserID:       &userID,
		EventType:    models.AuditMemberAdded,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Description:  "self-registration",
	})

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	user, err := h.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		userID := user.ID
		for _, m := range user.Tenants {
			h.recorder.Record(ctx, &models.AuditLogEntry{
				TenantID:     m.TenantID,
				UserID:       &userID,
				EventType:    models.AuditFailedLogin,
				ResourceType: "auth",
				Description:  "wrong password",
			})
			break // first (default) tenant only
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	userID := user.ID
	for _, m := range user.Tenants {
		h.recorder.Record(ctx, &models.AuditLogEntry{
			TenantID:     m.TenantID,
			UserID:       &userID,
			EventType:    models.AuditLogin,
			ResourceType: "auth",
			Description:  "login",
		})
		break
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}
