package service

import (
	"context"
	"fmt"
	"time"

	"clinic-sync/core/cache"
	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/errors"
	"clinic-sync/core/logger"
	"clinic-sync/core/tasks"
	apptservice "clinic-sync/modules/appointment/service"
	"clinic-sync/modules/calendar/client"
	"clinic-sync/modules/calendar/dto"
	calrepo "clinic-sync/modules/calendar/repository"
	credrepo "clinic-sync/modules/credentials/repository"
	credservice "clinic-sync/modules/credentials/service"

	"github.com/google/uuid"
)

// initialLookback bounds the first poll after connecting, before any cursor
// has been persisted.
const initialLookback = 24 * time.Hour

// InboundSyncService applies remote calendar changes to local appointments.
// Webhook pings carry no payload; each one triggers a poll of events updated
// since the persisted cursor.
type InboundSyncService interface {
	// HandleWebhookPing validates the delivery and enqueues a poll. The
	// initial "sync" handshake is acknowledged without polling.
	HandleWebhookPing(ctx context.Context, channelToken, resourceState string) *errors.AppError
	// ProcessChanges is the queued poll. The cursor only advances after a
	// fully successful batch, so a failed run is retried from the same spot.
	ProcessChanges(ctx context.Context) error
	// SyncStatus assembles the admin view of the sync machinery.
	SyncStatus(ctx context.Context) (*dto.SyncStatusResponse, *errors.AppError)
}

type inboundService struct {
	api       client.API
	vault     credservice.VaultService
	channels  ChannelService
	appts     apptservice.AppointmentService
	links     calrepo.SyncLinkRepository
	settings  credrepo.SettingsRepository
	cache     cache.Cache
	scheduler tasks.Scheduler
	now       func() time.Time
}

func NewInboundService(
	api client.API,
	vault credservice.VaultService,
	channels ChannelService,
	appts apptservice.AppointmentService,
	links calrepo.SyncLinkRepository,
	settings credrepo.SettingsRepository,
	cache cache.Cache,
	scheduler tasks.Scheduler,
) InboundSyncService {
	return &inboundService{
		api:       api,
		vault:     vault,
		channels:  channels,
		appts:     appts,
		links:     links,
		settings:  settings,
		cache:     cache,
		scheduler: scheduler,
		now:       time.Now,
	}
}

func (s *inboundService) HandleWebhookPing(ctx context.Context, channelToken, resourceState string) *errors.AppError {
	if !s.channels.VerifyToken(ctx, channelToken) {
		logger.Warn("InboundSync:HandleWebhookPing:BadToken")
		return errors.NewAppError(errors.ErrUnauthorized, "unknown channel token", nil)
	}

	if resourceState == "sync" {
		// Registration handshake; nothing changed yet.
		return nil
	}

	if err := s.scheduler.EnqueueProcessChanges(ctx); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to enqueue change processing", err)
	}
	return nil
}

func (s *inboundService) ProcessChanges(ctx context.Context) error {
	if !s.vault.IsConnected(ctx) || !s.vault.IsCalendarSyncEnabled(ctx) {
		return nil
	}

	cursor, err := s.loadCursor(ctx)
	if err != nil {
		return err
	}

	var (
		pageToken  string
		maxUpdated time.Time
		processed  int
	)
	for {
		list, appErr := s.api.ListEventsUpdatedSince(ctx, cursor, pageToken)
		if appErr != nil {
			return appErr
		}

		for i := range list.Items {
			event := &list.Items[i]
			if err := s.applyRemoteChange(ctx, event); err != nil {
				return err
			}
			processed++
			if updated, perr := time.Parse(time.RFC3339, event.Updated); perr == nil && updated.After(maxUpdated) {
				maxUpdated = updated
			}
		}

		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	if processed > 0 && maxUpdated.After(cursor) {
		// Nudge past the newest processed event so it is not re-fetched.
		if err := s.saveCursor(ctx, maxUpdated.Add(time.Millisecond)); err != nil {
			return err
		}
	}

	logger.Info("InboundSync:ProcessChanges:Done", "processed", processed, "cursor", cursor)
	return nil
}

func (s *inboundService) SyncStatus(ctx context.Context) (*dto.SyncStatusResponse, *errors.AppError) {
	resp := &dto.SyncStatusResponse{
		Connected:           s.vault.IsConnected(ctx),
		CalendarSyncEnabled: s.vault.IsCalendarSyncEnabled(ctx),
	}

	channel, err := s.channels.Channel(ctx)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load channel", err)
	}
	if channel != nil {
		resp.ChannelActive = true
		resp.ChannelExpiration = channel.Expiration.Format(time.RFC3339)
		resp.RenewalAt = channel.RenewalDue(constants.WebhookRenewalLead).Format(time.RFC3339)
	}

	cursor, err := s.settings.Get(ctx, credrepo.SettingCalendarCursor)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load cursor", err)
	}
	resp.InboundCursor = cursor
	return resp, nil
}

// applyRemoteChange handles one changed event. Events without this system's
// provenance tag, and events whose link no longer matches, are ignored.
func (s *inboundService) applyRemoteChange(ctx context.Context, event *client.Event) error {
	rawID := event.ProvenanceAppointmentID()
	if rawID == "" {
		return nil
	}
	appointmentID, err := uuid.Parse(rawID)
	if err != nil {
		logger.Warn("InboundSync:ApplyRemoteChange:BadProvenanceID", "value", rawID, "event_id", event.ID)
		return nil
	}

	link, err := s.links.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if link == nil || link.EventID != event.ID {
		// The tag survived a copy or the link was re-pointed; not ours.
		return nil
	}

	if event.Status == "cancelled" {
		// Remote deletion only flags the local appointment; staff decide
		// whether the visit itself is off.
		if appErr := s.appts.MarkRemoteDeleted(ctx, appointmentID); appErr != nil {
			return appErr
		}
		logger.Info("InboundSync:ApplyRemoteChange:RemoteDeleted", "appointment_id", appointmentID)
		return nil
	}

	if event.Start == nil || event.Start.DateTime == "" {
		return nil
	}
	date, startTime, err := s.localSchedule(event.Start.DateTime)
	if err != nil {
		logger.Warn("InboundSync:ApplyRemoteChange:BadStart", "value", event.Start.DateTime, "event_id", event.ID)
		return nil
	}

	appt, appErr := s.appts.GetByID(ctx, appointmentID)
	if appErr != nil {
		if errors.IsCode(appErr, errors.ErrNotFound) {
			return nil
		}
		return appErr
	}
	if appt.Date == date && appt.StartTime == startTime {
		// Change was cosmetic (color, description); nothing to pull.
		return nil
	}

	// Guard first so the resulting save does not echo back to Google.
	if err := s.cache.SetLoopGuard(ctx, appointmentID); err != nil {
		return err
	}
	if appErr := s.appts.RescheduleFromRemote(ctx, appointmentID, date, startTime); appErr != nil {
		return appErr
	}
	if err := s.links.TouchSyncedAt(ctx, appointmentID, s.now()); err != nil {
		logger.Error("InboundSync:ApplyRemoteChange:TouchError", "error", err, "appointment_id", appointmentID)
	}

	logger.Info("InboundSync:ApplyRemoteChange:Rescheduled",
		"appointment_id", appointmentID, "date", date, "start_time", startTime)
	return nil
}

// localSchedule converts an RFC3339 event start into the installation's
// local date and wall-clock time.
func (s *inboundService) localSchedule(dateTime string) (string, string, error) {
	t, err := time.Parse(time.RFC3339, dateTime)
	if err != nil {
		return "", "", err
	}

	tz := "UTC"
	if cfg, ok := config.GetSafe(); ok {
		tz = cfg.App.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	local := t.In(loc)
	return local.Format("2006-01-02"), local.Format("15:04"), nil
}

func (s *inboundService) loadCursor(ctx context.Context) (time.Time, error) {
	raw, err := s.settings.Get(ctx, credrepo.SettingCalendarCursor)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return s.now().Add(-initialLookback), nil
	}
	cursor, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt inbound cursor %q: %w", raw, err)
	}
	return cursor, nil
}

func (s *inboundService) saveCursor(ctx context.Context, cursor time.Time) error {
	return s.settings.Set(ctx, credrepo.SettingCalendarCursor, cursor.UTC().Format(time.RFC3339Nano))
}
