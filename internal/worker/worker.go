// Package worker runs background jobs: reconciliation of webhook events that
// failed synchronous ingest, and archive-then-clear of tenant event streams.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/events"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/pkg/queue"
	"github.com/phishgate/backend/pkg/storage"
)

// Processor consumes the job queues. The S3 client may be nil; archive jobs
// then clear events without an export.
type Processor struct {
	pipeline *events.Pipeline
	events   *events.Repository
	s3       *storage.S3
	queue    *queue.Queue
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(pipeline *events.Pipeline, eventsRepo *events.Repository, s3 *storage.S3, q *queue.Queue, recorder *audit.Recorder, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{pipeline: pipeline, events: eventsRepo, s3: s3, queue: q, recorder: recorder, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeWebhookIngest:
		return p.processIngest(ctx, job)
	case queue.JobTypeEventArchive:
		return p.processArchive(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processIngest re-runs the ingestion pipeline for a webhook event that
// failed while the sender was being acknowledged.
func (p *Processor) processIngest(ctx context.Context, job *queue.Job) error {
	var payload queue.WebhookIngestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	_, err := p.pipeline.IngestEvent(ctx, payload.TenantID, events.Ingest{
		CampaignID: payload.CampaignID,
		Email:      payload.Email,
		Message:    payload.Message,
		IPAddress:  payload.IPAddress,
		UserAgent:  payload.UserAgent,
		Payload:    payload.Payload,
		OccurredAt: payload.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("reingest: %w", err)
	}
	p.logger.Info("webhook event reconciled",
		zap.String("tenant_id", payload.TenantID.String()),
		zap.Int64("campaign_id", payload.CampaignID))
	return nil
}

// processArchive exports the tenant's events to object storage as a JSON
// document, then bulk-deletes them. The export must succeed before anything
// is deleted; without an S3 client the delete proceeds alone, which the
// operator opted into by not configuring a bucket.
func (p *Processor) processArchive(ctx context.Context, job *queue.Job) error {
	var payload queue.EventArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	all, err := p.events.All(ctx, payload.TenantID, payload.CampaignID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(all) == 0 {
		p.logger.Info("no events to archive", zap.String("tenant_id", payload.TenantID.String()))
		return nil
	}

	if p.s3 != nil {
		body, err := json.Marshal(all)
		if err != nil {
			return fmt.Errorf("marshal archive: %w", err)
		}
		key := storage.ArchiveKey(payload.TenantID.String(), payload.RequestedAt)
		if _, err := p.s3.UploadArchive(ctx, key, bytes.NewReader(body)); err != nil {
			return fmt.Errorf("upload archive: %w", err)
		}
		p.logger.Info("event archive written",
			zap.String("tenant_id", payload.TenantID.String()),
			zap.String("key", key),
			zap.Int("events", len(all)))
		// the key lands in the audit log so tenant admins can request a
		// download link for it later
		p.recorder.Record(ctx, &models.AuditLogEntry{
			TenantID:     payload.TenantID,
			UserID:       &payload.RequestedBy,
			EventType:    models.AuditResourceCreated,
			ResourceType: "event_archive",
			ResourceID:   key,
			Description:  fmt.Sprintf("event archive exported (%d events)", len(all)),
		})
	}

	deleted, err := p.events.BulkClear(ctx, payload.TenantID, payload.CampaignID)
	if err != nil {
		return fmt.Errorf("bulk clear: %w", err)
	}
	p.logger.Info("event stream cleared",
		zap.String("tenant_id", payload.TenantID.String()),
		zap.Int64("deleted", deleted))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job, key); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
