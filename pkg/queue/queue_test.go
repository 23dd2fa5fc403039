package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishgate/backend/pkg/queue"
)

func newTestQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, zap.NewNop()), mr
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	tenantID := uuid.New()
	err := q.EnqueueWebhookIngest(ctx, queue.WebhookIngestPayload{
		TenantID:   tenantID,
		CampaignID: 12,
		Email:      "target@example.com",
		Message:    "Clicked Link",
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, queue.QueueIngest, key)
	require.Equal(t, queue.JobTypeWebhookIngest, job.Type)
	require.Equal(t, 0, job.Attempt)
	require.NotEmpty(t, job.ID)
}

func TestDequeueDrainsBothQueues(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueEventArchive(ctx, queue.EventArchivePayload{
		TenantID:    uuid.New(),
		RequestedBy: uuid.New(),
		RequestedAt: time.Now().UTC(),
	}))

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, queue.QueueArchive, key)
	require.Equal(t, queue.JobTypeEventArchive, job.Type)
}

func TestRetryReenqueuesOnOriginQueue(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueWebhookIngest(ctx, queue.WebhookIngestPayload{TenantID: uuid.New(), CampaignID: 1, Email: "a@b.c"}))
	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job, key))
	require.True(t, mr.Exists(queue.QueueIngest))

	retried, retriedKey, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, queue.QueueIngest, retriedKey)
	require.Equal(t, job.ID, retried.ID)
	require.Equal(t, 1, retried.Attempt)
}

func TestRetryMovesExhaustedJobToDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueWebhookIngest(ctx, queue.WebhookIngestPayload{TenantID: uuid.New(), CampaignID: 1, Email: "a@b.c"}))

	for i := 0; i < queue.MaxRetries; i++ {
		job, key, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.Retry(ctx, job, key))
	}

	require.False(t, mr.Exists(queue.QueueIngest))
	require.True(t, mr.Exists(queue.QueueDLQ))
}
