package dto

// SyncStatusResponse is the admin view of the sync machinery: whether the
// push channel is live, when it renews, and how far the inbound cursor is.
type SyncStatusResponse struct {
	Connected           bool   `json:"connected"`
	CalendarSyncEnabled bool   `json:"calendar_sync_enabled"`
	ChannelActive       bool   `json:"channel_active"`
	ChannelExpiration   string `json:"channel_expiration,omitempty"`
	RenewalAt           string `json:"renewal_at,omitempty"`
	InboundCursor       string `json:"inbound_cursor,omitempty"`
}
