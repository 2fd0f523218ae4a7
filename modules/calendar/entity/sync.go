package entity

import (
	"time"

	"github.com/google/uuid"
)

// WebhookChannel is the single registered Google push channel. One row exists
// at most; registering a new channel replaces it.
type WebhookChannel struct {
	ChannelID    string    `db:"channel_id" json:"channel_id"`
	ResourceID   string    `db:"resource_id" json:"resource_id"`
	Token        string    `db:"token" json:"-"`
	Expiration   time.Time `db:"expiration" json:"expiration"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// RenewalDue is when the renewal job should fire for this channel.
func (c *WebhookChannel) RenewalDue(lead time.Duration) time.Time {
	return c.Expiration.Add(-lead)
}

// AppointmentSyncLink ties a local appointment to its Google event. The last
// error fields record the most recent push failure without blocking local
// operations.
type AppointmentSyncLink struct {
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	EventID       string     `db:"event_id" json:"event_id"`
	LastSyncedAt  *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LastErrorKind string     `db:"last_error_kind" json:"last_error_kind,omitempty"`
	LastErrorMsg  string     `db:"last_error_msg" json:"last_error_msg,omitempty"`
	LastErrorAt   *time.Time `db:"last_error_at" json:"last_error_at,omitempty"`
}
