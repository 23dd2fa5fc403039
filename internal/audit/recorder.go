package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/models"
)

// Writer appends audit entries. Satisfied by *Repository; fakes implement it
// in tests.
type Writer interface {
	Insert(ctx context.Context, e *models.AuditLogEntry) error
}

// Recorder writes audit entries synchronously before the triggering handler
// returns, but never fails the caller: a lost audit write is logged, not
// propagated.
type Recorder struct {
	writer Writer
	logger *zap.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(writer Writer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{writer: writer, logger: logger}
}

// Record appends one entry, swallowing (but logging) persistence errors.
func (r *Recorder) Record(ctx context.Context, e *models.AuditLogEntry) {
	if err := r.writer.Insert(ctx, e); err != nil {
		r.logger.Error("audit write failed",
			zap.String("tenant_id", e.TenantID.String()),
			zap.String("event_type", e.EventType),
			zap.Error(err))
	}
}
