package constants

import "time"

// HTTP / context timeouts
const (
	DefaultTimeout       = 30 * time.Second
	GoogleAPITimeout     = 15 * time.Second
	TokenEndpointTimeout = 15 * time.Second
)

// Database pool settings
const (
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
)

// OAuth / credential vault
const (
	// AccessTokenRefreshMargin is how close to expiry an access token may get
	// before GetAccessToken refreshes it instead of returning it.
	AccessTokenRefreshMargin = 5 * time.Minute

	// OAuthStateTTL bounds how long an issued CSRF state token stays valid.
	OAuthStateTTL = 10 * time.Minute
)

// Webhook channel lifecycle
const (
	// WebhookChannelTTL is the lifetime requested for a Google push channel.
	WebhookChannelTTL = 7 * 24 * time.Hour

	// WebhookRenewalLead is how long before channel expiry the renewal job runs.
	WebhookRenewalLead = 5 * 24 * time.Hour
)

// Loop guard
const (
	// LoopGuardTTL caps how long a remote-originated write suppresses the next
	// outbound push for the same appointment. The flag is normally consumed on
	// the very next save; the TTL only covers the case where that save never
	// arrives.
	LoopGuardTTL = 5 * time.Minute
)

// Redis key prefixes
const (
	RedisKeyLoopGuard  = "calendar:loopguard:"
	RedisKeyOAuthState = "oauth:state:"
)

// Asynq task types and queue
const (
	TaskProcessCalendarChanges = "calendar:process_changes"
	TaskRenewWebhookChannel    = "calendar:renew_channel"
	TaskQueueSync              = "sync"

	// RenewalTaskID is the stable asynq task id for the pending one-shot
	// renewal, so StopChannel can cancel it. Only one channel exists per
	// installation, so one id is enough.
	RenewalTaskID = "calendar:renew_channel:pending"
)

// Google Calendar REST endpoints
const (
	GoogleCalendarAPIBase  = "https://www.googleapis.com/calendar/v3"
	GoogleEventsAPI        = GoogleCalendarAPIBase + "/calendars/primary/events"
	GoogleChannelsStopAPI  = GoogleCalendarAPIBase + "/channels/stop"
	GoogleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	ProvenancePropertyKey  = "clinicAppointmentId"
	ProvenanceSourceKey    = "clinicSource"
	ProvenanceSourceMarker = "clinic-sync"
)
