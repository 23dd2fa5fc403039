package events_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/events"
	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/pkg/queue"
)

type fakeTokenResolver struct {
	tenant *models.Tenant
}

func (f *fakeTokenResolver) GetByWebhookToken(_ context.Context, token string) (*models.Tenant, error) {
	if f.tenant != nil && f.tenant.Settings.WebhookToken == token {
		return f.tenant, nil
	}
	return nil, pgx.ErrNoRows
}

func newWebhookRouter(t *testing.T, store *fakeStore, cache *fakeCache, resolver *fakeTokenResolver) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pipeline := events.NewPipeline(store, cache, nil, zap.NewNop())
	q := queue.NewQueue(client, zap.NewNop())
	recorder := audit.NewRecorder(&discardAudit{}, zap.NewNop())
	h := events.NewHandler(pipeline, nil, resolver, q, nil, recorder, zap.NewNop())

	r := gin.New()
	r.POST("/webhooks/events", h.Webhook)
	return r, mr
}

// newArchiveRouter serves the authenticated archive-url endpoint with the
// given tenant context installed.
func newArchiveRouter(t *testing.T, tctx *models.TenantContext) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := queue.NewQueue(client, zap.NewNop())
	recorder := audit.NewRecorder(&discardAudit{}, zap.NewNop())
	h := events.NewHandler(nil, nil, nil, q, nil, recorder, zap.NewNop())

	r := gin.New()
	r.GET("/api/events/archive-url", func(c *gin.Context) {
		c.Set(middleware.ContextTenant, tctx)
	}, h.ArchiveURL)
	return r
}

type discardAudit struct{}

func (discardAudit) Insert(context.Context, *models.AuditLogEntry) error { return nil }

func webhookTenant(token string) *models.Tenant {
	return &models.Tenant{
		ID:     uuid.New(),
		Name:   "acme",
		Status: models.TenantStatusActive,
		Settings: models.TenantSettings{
			WebhookToken: token,
		},
	}
}

func postWebhook(r *gin.Engine, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(events.HeaderWebhookToken, token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsMissingOrUnknownToken(t *testing.T) {
	store := &fakeStore{}
	r, _ := newWebhookRouter(t, store, &fakeCache{applied: true}, &fakeTokenResolver{tenant: webhookTenant("secret")})

	w := postWebhook(r, "", `{"campaign_id":1,"email":"a@b.c","message":"Email Sent"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, "wrong", `{"campaign_id":1,"email":"a@b.c","message":"Email Sent"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.Empty(t, store.inserted)
}

func TestWebhookRejectsInactiveTenant(t *testing.T) {
	tenant := webhookTenant("secret")
	tenant.Status = models.TenantStatusSuspended
	r, _ := newWebhookRouter(t, &fakeStore{}, &fakeCache{applied: true}, &fakeTokenResolver{tenant: tenant})

	w := postWebhook(r, "secret", `{"campaign_id":1,"email":"a@b.c","message":"Email Sent"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookIngestsAndAcks(t *testing.T) {
	store := &fakeStore{}
	tenant := webhookTenant("secret")
	r, _ := newWebhookRouter(t, store, &fakeCache{applied: true}, &fakeTokenResolver{tenant: tenant})

	body := `{"campaign_id":5,"email":"target@example.com","message":"Email Opened and Clicked",` +
		`"details":{"browser":{"address":"10.1.2.3","user-agent":"Mozilla/5.0"}}}`
	w := postWebhook(r, "secret", body)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.inserted, 1)
	e := store.inserted[0]
	require.Equal(t, tenant.ID, e.TenantID)
	require.Equal(t, models.EventClicked, e.EventType)
	require.Equal(t, "10.1.2.3", e.IPAddress)
	require.Equal(t, "Mozilla/5.0", e.UserAgent)
}

func TestArchiveURLRejectsForeignKey(t *testing.T) {
	tctx := &models.TenantContext{TenantID: uuid.New()}
	r := newArchiveRouter(t, tctx)

	otherKey := "event-archives/" + uuid.New().String() + "/20260829T120000Z.json"
	req := httptest.NewRequest(http.MethodGet, "/api/events/archive-url?key="+otherKey, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestArchiveURLWithoutStorage(t *testing.T) {
	tctx := &models.TenantContext{TenantID: uuid.New()}
	r := newArchiveRouter(t, tctx)

	ownKey := "event-archives/" + tctx.TenantID.String() + "/20260829T120000Z.json"
	req := httptest.NewRequest(http.MethodGet, "/api/events/archive-url?key="+ownKey, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	// a missing key is the caller's mistake, not a storage problem
	req = httptest.NewRequest(http.MethodGet, "/api/events/archive-url", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// A failed ingest still acks 200 and lands on the reconciliation queue: the
// sender never redelivers.
func TestWebhookAcksAndQueuesFailedIngest(t *testing.T) {
	store := &fakeStore{err: context.DeadlineExceeded}
	r, mr := newWebhookRouter(t, store, &fakeCache{applied: true}, &fakeTokenResolver{tenant: webhookTenant("secret")})

	w := postWebhook(r, "secret", `{"campaign_id":5,"email":"target@example.com","message":"Clicked Link"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, mr.Exists(queue.QueueIngest))
}
