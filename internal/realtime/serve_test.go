package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/realtime"
	"github.com/phishgate/backend/internal/tenants"
)

func newFeedRouter(t *testing.T, hub *realtime.Hub, authorize realtime.Authorizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", realtime.ServeWs(hub, zap.NewNop(), authorize))
	return r
}

func feedGet(r *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ws"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServeWsRejectsMissingParams(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	r := newFeedRouter(t, hub, func(context.Context, string, uuid.UUID) (*models.Principal, error) {
		t.Fatal("authorizer must not run without params")
		return nil, nil
	})

	require.Equal(t, http.StatusBadRequest, feedGet(r, "").Code)
	require.Equal(t, http.StatusBadRequest, feedGet(r, "?tenant_id="+uuid.New().String()).Code)
	require.Equal(t, http.StatusBadRequest, feedGet(r, "?tenant_id=not-a-uuid&token=tok").Code)
}

func TestServeWsRejectsInvalidToken(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	r := newFeedRouter(t, hub, func(context.Context, string, uuid.UUID) (*models.Principal, error) {
		return nil, errors.New("signature mismatch")
	})

	w := feedGet(r, "?tenant_id="+uuid.New().String()+"&token=bad")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

// The feed applies the same tenant gate as the HTTP API: membership denials
// and suspended tenants cannot hold a live connection.
func TestServeWsRejectsDeniedTenantAccess(t *testing.T) {
	for _, cause := range []error{
		tenants.ErrTenantAccessDenied,
		tenants.ErrTenantInactive,
		tenants.ErrTenantNotFound,
	} {
		hub := realtime.NewHub(zap.NewNop(), nil, nil)
		r := newFeedRouter(t, hub, func(context.Context, string, uuid.UUID) (*models.Principal, error) {
			return nil, cause
		})

		w := feedGet(r, "?tenant_id="+uuid.New().String()+"&token=tok")
		require.Equal(t, http.StatusForbidden, w.Code, cause.Error())
	}
}

func TestServeWsDeliversTenantEvents(t *testing.T) {
	tenantID := uuid.New()
	principal := &models.Principal{ID: uuid.New(), Role: models.RoleUser}
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	r := newFeedRouter(t, hub, func(_ context.Context, token string, id uuid.UUID) (*models.Principal, error) {
		if token != "tok" || id != tenantID {
			return nil, errors.New("unexpected credentials")
		}
		return principal, nil
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?tenant_id=" + tenantID.String() + "&token=tok"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(tenantID) == 1 },
		time.Second, 10*time.Millisecond)

	hub.PublishEvent(context.Background(), &models.Event{
		TenantID:   tenantID,
		CampaignID: 7,
		Email:      "target@example.com",
		EventType:  models.EventClicked,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtime.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, realtime.EventCampaignActivity, msg.Event)
	require.Contains(t, string(msg.Data), "target@example.com")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(tenantID) == 0 },
		time.Second, 10*time.Millisecond)
}
