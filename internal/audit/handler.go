package audit

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/pkg/response"
)

// Handler serves the audit log read API for tenant admins.
type Handler struct {
	repo *Repository
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /api/audit. Filters: user_id, event_type, from/to (RFC3339),
// limit. Filters are mutually exclusive in precedence order user > event_type
// > date range > recent.
func (h *Handler) List(c *gin.Context) {
	tctx := middleware.MustTenantContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	ctx := c.Request.Context()

	if v := c.Query("user_id"); v != "" {
		userID, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
		list, err := h.repo.ByUser(ctx, tctx.TenantID, userID, limit)
		if err != nil {
			response.Internal(c, "failed to load audit log")
			return
		}
		response.OK(c, list)
		return
	}

	if v := c.Query("event_type"); v != "" {
		list, err := h.repo.ByEventType(ctx, tctx.TenantID, v, limit)
		if err != nil {
			response.Internal(c, "failed to load audit log")
			return
		}
		response.OK(c, list)
		return
	}

	if fromStr, toStr := c.Query("from"), c.Query("to"); fromStr != "" || toStr != "" {
		from, err := parseTimeOr(fromStr, time.Time{})
		if err != nil {
			response.BadRequest(c, "invalid from timestamp")
			return
		}
		to, err := parseTimeOr(toStr, time.Now())
		if err != nil {
			response.BadRequest(c, "invalid to timestamp")
			return
		}
		list, err := h.repo.ByDateRange(ctx, tctx.TenantID, from, to, limit)
		if err != nil {
			response.Internal(c, "failed to load audit log")
			return
		}
		response.OK(c, list)
		return
	}

	list, err := h.repo.RecentByTenant(ctx, tctx.TenantID, limit)
	if err != nil {
		response.Internal(c, "failed to load audit log")
		return
	}
	response.OK(c, list)
}

func parseTimeOr(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, s)
}
