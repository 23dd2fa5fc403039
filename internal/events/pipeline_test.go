package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/events"
	"github.com/phishgate/backend/internal/models"
)

type fakeStore struct {
	inserted []*models.Event
	err      error
}

func (s *fakeStore) Insert(_ context.Context, e *models.Event) error {
	if s.err != nil {
		return s.err
	}
	e.ID = uuid.New()
	s.inserted = append(s.inserted, e)
	return nil
}

type applyCall struct {
	campaignID int64
	email      string
	eventType  models.EventType
}

type fakeCache struct {
	calls   []applyCall
	applied bool
	err     error
}

func (c *fakeCache) ApplyEvent(_ context.Context, _ uuid.UUID, upstreamID int64, email string, et models.EventType, _ time.Time) (bool, error) {
	c.calls = append(c.calls, applyCall{campaignID: upstreamID, email: email, eventType: et})
	return c.applied, c.err
}

type fakePublisher struct {
	published []*models.Event
}

func (p *fakePublisher) PublishEvent(_ context.Context, e *models.Event) {
	p.published = append(p.published, e)
}

func TestPipelineIngestsAndFoldsIntoCache(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{applied: true}
	pub := &fakePublisher{}
	p := events.NewPipeline(store, cache, pub, zap.NewNop())

	tenantID := uuid.New()
	e, err := p.IngestEvent(context.Background(), tenantID, events.Ingest{
		CampaignID: 42,
		Email:      "target@example.com",
		Message:    "Clicked Link",
	})
	require.NoError(t, err)
	require.Equal(t, models.EventClicked, e.EventType)
	require.Equal(t, tenantID, e.TenantID)
	require.False(t, e.OccurredAt.IsZero())

	require.Len(t, store.inserted, 1)
	require.Len(t, cache.calls, 1)
	require.Equal(t, applyCall{campaignID: 42, email: "target@example.com", eventType: models.EventClicked}, cache.calls[0])
	require.Len(t, pub.published, 1)
}

func TestPipelineRejectsInvalidInput(t *testing.T) {
	store := &fakeStore{}
	p := events.NewPipeline(store, &fakeCache{}, nil, zap.NewNop())

	_, err := p.IngestEvent(context.Background(), uuid.New(), events.Ingest{Email: "a@b.c", Message: "Email Sent"})
	require.ErrorIs(t, err, events.ErrMissingCampaign)

	_, err = p.IngestEvent(context.Background(), uuid.New(), events.Ingest{CampaignID: 1, Message: "Email Sent"})
	require.ErrorIs(t, err, events.ErrMissingEmail)

	require.Empty(t, store.inserted)
}

func TestPipelinePersistsWhenCacheFoldFails(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{err: errors.New("db down")}
	p := events.NewPipeline(store, cache, nil, zap.NewNop())

	_, err := p.IngestEvent(context.Background(), uuid.New(), events.Ingest{
		CampaignID: 7,
		Email:      "target@example.com",
		Message:    "Email Opened",
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
}

func TestPipelinePersistsForUncachedCampaign(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{applied: false}
	p := events.NewPipeline(store, cache, nil, zap.NewNop())

	_, err := p.IngestEvent(context.Background(), uuid.New(), events.Ingest{
		CampaignID: 9,
		Email:      "target@example.com",
		Message:    "Email Sent",
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
}

func TestPipelineFailsWhenStoreFails(t *testing.T) {
	store := &fakeStore{err: errors.New("insert failed")}
	cache := &fakeCache{applied: true}
	pub := &fakePublisher{}
	p := events.NewPipeline(store, cache, pub, zap.NewNop())

	_, err := p.IngestEvent(context.Background(), uuid.New(), events.Ingest{
		CampaignID: 1,
		Email:      "target@example.com",
		Message:    "Email Sent",
	})
	require.Error(t, err)
	require.Empty(t, cache.calls, "cache must not be touched when the event was not persisted")
	require.Empty(t, pub.published)
}

// Duplicate deliveries are not deduplicated: each ingest counts once.
func TestPipelineCountsDuplicateDeliveries(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{applied: true}
	p := events.NewPipeline(store, cache, nil, zap.NewNop())

	in := events.Ingest{CampaignID: 3, Email: "target@example.com", Message: "Email Opened"}
	_, err := p.IngestEvent(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	_, err = p.IngestEvent(context.Background(), uuid.New(), in)
	require.NoError(t, err)

	require.Len(t, store.inserted, 2)
	require.Len(t, cache.calls, 2)
}
