package dto

// AuthorizationURLResponse carries the Google consent URL to redirect the
// staff browser to. Empty when client credentials are not configured.
type AuthorizationURLResponse struct {
	URL        string `json:"url"`
	Configured bool   `json:"configured"`
}

// ConnectionStatusResponse is the admin view of the connection.
type ConnectionStatusResponse struct {
	Connected           bool   `json:"connected"`
	ConnectedAt         string `json:"connected_at,omitempty"`
	TokenExpiresAt      string `json:"token_expires_at,omitempty"`
	CalendarSyncEnabled bool   `json:"calendar_sync_enabled"`
}

// UpdateTogglesRequest flips the sync feature toggles.
type UpdateTogglesRequest struct {
	CalendarSyncEnabled *bool `json:"calendar_sync_enabled"`
}
