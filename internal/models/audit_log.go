package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event types for security-relevant actions.
const (
	AuditLogin           = "login"
	AuditFailedLogin     = "failed_login"
	AuditRoleChange      = "role_change"
	AuditTenantCreated   = "tenant_created"
	AuditTenantUpdated   = "tenant_updated"
	AuditTenantSuspended = "tenant_suspended"
	AuditMemberAdded     = "member_added"
	AuditMemberRemoved   = "member_removed"
	AuditUserDeleted     = "user_deleted"
	AuditResourceCreated = "resource_created"
	AuditResourceUpdated = "resource_updated"
	AuditResourceDeleted = "resource_deleted"
	AuditEventsCleared   = "events_cleared"
	AuditInsecureTLSCall = "insecure_tls_call"
)

// AuditLogEntry is an append-only record of a security-relevant action.
// Immutable once written; the only forensic trail for these actions.
type AuditLogEntry struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Description  string          `json:"description"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
