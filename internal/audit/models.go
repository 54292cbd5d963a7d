package audit

import "time"

// Event is an immutable, append-only audit log record of an operator
// action against the dialer console.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block control flows on
//   audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated operator causing the event.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// CampaignID is set for events that target one campaign slot.
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCampaignControl EventType = "campaign_control" // start/stop/pause/resume
	EventTypeConfigChange    EventType = "config_change"
	EventTypeDatasetChange   EventType = "dataset_change"
	EventTypeTestCall        EventType = "test_call"
)
