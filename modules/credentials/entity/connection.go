package entity

import (
	"time"

	"clinic-sync/core/entity"

	"github.com/google/uuid"
)

// GoogleConnection is the one-per-installation OAuth connection record. Token
// columns hold AES-GCM armored ciphertext, never plaintext. A present access
// token always has a refresh token alongside it, or the row does not exist.
type GoogleConnection struct {
	entity.BaseEntity
	AccessToken         string    `db:"access_token" json:"-"`
	RefreshToken        string    `db:"refresh_token" json:"-"`
	TokenExpiresAt      time.Time `db:"token_expires_at" json:"token_expires_at"`
	ConnectedAt         time.Time `db:"connected_at" json:"connected_at"`
	ConnectedBy         uuid.UUID `db:"connected_by" json:"connected_by"`
	CalendarSyncEnabled bool      `db:"calendar_sync_enabled" json:"calendar_sync_enabled"`
}

func (GoogleConnection) TableName() string {
	return "google_connections"
}
