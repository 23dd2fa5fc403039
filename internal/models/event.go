package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of normalized event kinds, ordered as a funnel:
// email_sent -> email_opened -> clicked -> submitted_data -> reported.
type EventType string

const (
	EventEmailSent     EventType = "email_sent"
	EventEmailOpened   EventType = "email_opened"
	EventClicked       EventType = "clicked"
	EventSubmittedData EventType = "submitted_data"
	EventReported      EventType = "reported"
)

// FunnelDepth returns the position of t in the engagement funnel. Deeper
// stages win classification ties.
func (t EventType) FunnelDepth() int {
	switch t {
	case EventEmailSent:
		return 0
	case EventEmailOpened:
		return 1
	case EventClicked:
		return 2
	case EventSubmittedData:
		return 3
	case EventReported:
		return 4
	}
	return -1
}

// Event is one normalized delivery/engagement notification. Append-only:
// events are never mutated, and deleted only by an explicit bulk clear.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	CampaignID int64           `json:"campaign_id"` // upstream campaign id
	Email      string          `json:"email"`
	EventType  EventType       `json:"event_type"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}
