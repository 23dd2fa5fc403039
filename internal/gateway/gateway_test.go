package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/gateway"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/upstream"
)

type fakeAPI struct {
	campaigns []upstream.Campaign
	err       error
	creates   int
	deletes   int
}

func (a *fakeAPI) ListCampaigns(context.Context) ([]upstream.Campaign, error) {
	return a.campaigns, a.err
}

func (a *fakeAPI) GetCampaign(_ context.Context, id int64) (*upstream.Campaign, error) {
	if a.err != nil {
		return nil, a.err
	}
	for i := range a.campaigns {
		if a.campaigns[i].ID == id {
			return &a.campaigns[i], nil
		}
	}
	return nil, &upstream.RejectedError{Status: 404, Body: "not found"}
}

func (a *fakeAPI) GetCampaignResults(ctx context.Context, id int64) (*upstream.Campaign, error) {
	return a.GetCampaign(ctx, id)
}

func (a *fakeAPI) CreateCampaign(_ context.Context, req upstream.CampaignRequest) (*upstream.Campaign, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.creates++
	c := upstream.Campaign{ID: int64(len(a.campaigns) + 1), Name: req.Name, Status: models.CampaignStatusQueued}
	a.campaigns = append(a.campaigns, c)
	return &c, nil
}

func (a *fakeAPI) CompleteCampaign(_ context.Context, _ int64) error {
	return a.err
}

func (a *fakeAPI) DeleteCampaign(_ context.Context, _ int64) error {
	if a.err != nil {
		return a.err
	}
	a.deletes++
	return nil
}

type memCache struct {
	campaigns map[int64]*models.Campaign
	upserts   int
	deletes   int
	failWrite bool
}

func newMemCache() *memCache {
	return &memCache{campaigns: map[int64]*models.Campaign{}}
}

func (m *memCache) Upsert(_ context.Context, c *models.Campaign) error {
	if m.failWrite {
		return context.DeadlineExceeded
	}
	m.upserts++
	c.LastSynced = time.Now()
	cp := *c
	m.campaigns[c.UpstreamID] = &cp
	return nil
}

func (m *memCache) ReplaceResults(_ context.Context, _ uuid.UUID, _ int64, _ []models.CampaignResult) error {
	return nil
}

func (m *memCache) Get(_ context.Context, _ uuid.UUID, upstreamID int64) (*models.Campaign, error) {
	return m.campaigns[upstreamID], nil
}

func (m *memCache) List(_ context.Context, _ uuid.UUID) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range m.campaigns {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCache) OldestSync(_ context.Context, _ uuid.UUID) (time.Time, error) {
	oldest := time.Now()
	for _, c := range m.campaigns {
		if c.LastSynced.Before(oldest) {
			oldest = c.LastSynced
		}
	}
	return oldest, nil
}

func (m *memCache) Delete(_ context.Context, _ uuid.UUID, upstreamID int64) error {
	delete(m.campaigns, upstreamID)
	m.deletes++
	return nil
}

func testTenantContext() *models.TenantContext {
	return &models.TenantContext{
		TenantID:    uuid.New(),
		Credentials: models.TenantCredentials{BaseURL: "https://phish.internal:3333", APIKey: "k", VerifyTLS: true},
		Role:        models.TenantRoleAdmin,
	}
}

func newGateway(c gateway.CampaignCache) *gateway.Gateway {
	return gateway.New(c, nil, upstream.Options{}, zap.NewNop())
}

func TestListCampaignsWritesThroughOnSuccess(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	api := &fakeAPI{campaigns: []upstream.Campaign{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}}}
	tctx := testTenantContext()

	list, err := gw.ListCampaigns(context.Background(), api, tctx)
	require.NoError(t, err)
	require.False(t, list.Partial)
	require.Len(t, list.Campaigns, 2)
	require.Equal(t, 2, cache.upserts)
	require.Equal(t, tctx.TenantID, list.Campaigns[0].TenantID)
}

func TestListCampaignsFallsBackToCacheOnOutage(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	tctx := testTenantContext()

	// warm the cache
	warm := &fakeAPI{campaigns: []upstream.Campaign{{ID: 1, Name: "One"}}}
	_, err := gw.ListCampaigns(context.Background(), warm, tctx)
	require.NoError(t, err)

	down := &fakeAPI{err: &upstream.UnavailableError{LastStatus: 503}}
	list, err := gw.ListCampaigns(context.Background(), down, tctx)
	require.NoError(t, err)
	require.True(t, list.Partial)
	require.Len(t, list.Campaigns, 1)
	require.False(t, list.LastSynced.IsZero())
}

func TestListCampaignsPropagatesOutageWhenCacheEmpty(t *testing.T) {
	gw := newGateway(newMemCache())
	down := &fakeAPI{err: &upstream.UnavailableError{LastStatus: 503}}

	_, err := gw.ListCampaigns(context.Background(), down, testTenantContext())
	require.Error(t, err)
	require.True(t, upstream.IsUnavailable(err))
}

func TestGetCampaignNoFallbackForRejections(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	tctx := testTenantContext()

	warm := &fakeAPI{campaigns: []upstream.Campaign{{ID: 5, Name: "Cached"}}}
	_, err := gw.GetCampaign(context.Background(), warm, tctx, 5)
	require.NoError(t, err)

	// a definitive 404 must not be papered over with cached data
	gone := &fakeAPI{}
	_, err = gw.GetCampaign(context.Background(), gone, tctx, 5)
	require.Error(t, err)
	_, rejected := upstream.IsRejected(err)
	require.True(t, rejected)
}

func TestGetCampaignServesCacheOnOutage(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	tctx := testTenantContext()

	warm := &fakeAPI{campaigns: []upstream.Campaign{{ID: 5, Name: "Cached"}}}
	_, err := gw.GetCampaign(context.Background(), warm, tctx, 5)
	require.NoError(t, err)

	down := &fakeAPI{err: &upstream.UnavailableError{Err: context.DeadlineExceeded}}
	read, err := gw.GetCampaign(context.Background(), down, tctx, 5)
	require.NoError(t, err)
	require.True(t, read.Partial)
	require.Equal(t, "Cached", read.Campaign.Name)
}

func TestCreateCampaignFailsClosed(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	down := &fakeAPI{err: &upstream.UnavailableError{LastStatus: 502}}

	_, err := gw.CreateCampaign(context.Background(), down, testTenantContext(), uuid.New(), upstream.CampaignRequest{Name: "New"})
	require.Error(t, err)
	require.Equal(t, 0, cache.upserts, "failed writes must not touch the cache")
}

func TestCreateCampaignMirrorsOnSuccess(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	api := &fakeAPI{}

	created, err := gw.CreateCampaign(context.Background(), api, testTenantContext(), uuid.New(), upstream.CampaignRequest{Name: "New"})
	require.NoError(t, err)
	require.Equal(t, 1, api.creates)
	require.Equal(t, 1, cache.upserts)
	require.Equal(t, "New", created.Name)
}

func TestCreateCampaignSurvivesCacheWriteFailure(t *testing.T) {
	cache := newMemCache()
	cache.failWrite = true
	gw := newGateway(cache)
	api := &fakeAPI{}

	created, err := gw.CreateCampaign(context.Background(), api, testTenantContext(), uuid.New(), upstream.CampaignRequest{Name: "New"})
	require.NoError(t, err, "a cache write failure must not fail a successful upstream write")
	require.Equal(t, "New", created.Name)
}

func TestDeleteCampaignDropsCachedCopy(t *testing.T) {
	cache := newMemCache()
	gw := newGateway(cache)
	tctx := testTenantContext()

	warm := &fakeAPI{campaigns: []upstream.Campaign{{ID: 7, Name: "Doomed"}}}
	_, err := gw.GetCampaign(context.Background(), warm, tctx, 7)
	require.NoError(t, err)

	require.NoError(t, gw.DeleteCampaign(context.Background(), warm, tctx, uuid.New(), 7))
	require.Equal(t, 1, cache.deletes)
	cached, err := cache.Get(context.Background(), tctx.TenantID, 7)
	require.NoError(t, err)
	require.Nil(t, cached)
}
