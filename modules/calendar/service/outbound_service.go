package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clinic-sync/core/cache"
	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/errors"
	"clinic-sync/core/logger"
	"clinic-sync/modules/appointment/entity"
	"clinic-sync/modules/calendar/client"
	calentity "clinic-sync/modules/calendar/entity"
	"clinic-sync/modules/calendar/repository"
	credservice "clinic-sync/modules/credentials/service"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Google Calendar color ids by appointment status.
var statusColors = map[string]string{
	entity.StatusScheduled: "7",  // peacock
	entity.StatusConfirmed: "10", // basil
	entity.StatusCheckedIn: "5",  // banana
	entity.StatusCompleted: "8",  // graphite
}

// OutboundSyncService pushes local appointment changes to Google Calendar.
// It subscribes to appointment saves and deletes; failures are recorded on
// the sync link and never propagate to the local operation.
type OutboundSyncService interface {
	OnAppointmentSaved(ctx context.Context, appt *entity.Appointment)
	OnAppointmentDeleted(ctx context.Context, appt *entity.Appointment)
}

type outboundService struct {
	api   client.API
	vault credservice.VaultService
	links repository.SyncLinkRepository
	cache cache.Cache
	now   func() time.Time
}

func NewOutboundService(api client.API, vault credservice.VaultService, links repository.SyncLinkRepository, cache cache.Cache) OutboundSyncService {
	return &outboundService{
		api:   api,
		vault: vault,
		links: links,
		cache: cache,
		now:   time.Now,
	}
}

func (s *outboundService) OnAppointmentSaved(ctx context.Context, appt *entity.Appointment) {
	if !s.vault.IsConnected(ctx) || !s.vault.IsCalendarSyncEnabled(ctx) {
		return
	}

	// A save that applied a remote-originated change must not echo back out.
	guarded, err := s.cache.ConsumeLoopGuard(ctx, appt.ID)
	if err != nil {
		logger.Error("OutboundSync:OnAppointmentSaved:LoopGuardError", "error", err, "appointment_id", appt.ID)
	}
	if guarded {
		logger.Info("OutboundSync:OnAppointmentSaved:LoopGuardSkip", "appointment_id", appt.ID)
		return
	}

	link, err := s.links.GetByAppointmentID(ctx, appt.ID)
	if err != nil {
		s.recordFailure(ctx, appt.ID, errors.NewAppError(errors.ErrInternalServer, "failed to load sync link", err))
		return
	}

	if !appt.Publishable() {
		// Cancelled and no-show visits come off the remote calendar.
		s.removeRemoteEvent(ctx, appt.ID, link)
		return
	}

	event, appErr := s.buildEvent(appt)
	if appErr != nil {
		s.recordFailure(ctx, appt.ID, appErr)
		return
	}

	if link == nil || link.EventID == "" {
		s.createRemoteEvent(ctx, appt.ID, event)
		return
	}

	_, appErr = s.api.UpdateEvent(ctx, link.EventID, event)
	if appErr == nil {
		if err := s.links.Save(ctx, appt.ID, link.EventID, s.now()); err != nil {
			logger.Error("OutboundSync:OnAppointmentSaved:SaveLinkError", "error", err, "appointment_id", appt.ID)
		}
		return
	}

	// The linked event vanished remotely: the link is stale. Heal by
	// dropping it and creating the event fresh, once.
	if errors.RemoteStatus(appErr) == http.StatusNotFound {
		logger.Info("OutboundSync:OnAppointmentSaved:StaleLink",
			"appointment_id", appt.ID, "event_id", link.EventID)
		if err := s.links.Delete(ctx, appt.ID); err != nil {
			logger.Error("OutboundSync:OnAppointmentSaved:DeleteLinkError", "error", err, "appointment_id", appt.ID)
		}
		s.createRemoteEvent(ctx, appt.ID, event)
		return
	}

	s.recordFailure(ctx, appt.ID, appErr)
}

func (s *outboundService) OnAppointmentDeleted(ctx context.Context, appt *entity.Appointment) {
	if !s.vault.IsConnected(ctx) || !s.vault.IsCalendarSyncEnabled(ctx) {
		return
	}

	link, err := s.links.GetByAppointmentID(ctx, appt.ID)
	if err != nil {
		logger.Error("OutboundSync:OnAppointmentDeleted:LinkError", "error", err, "appointment_id", appt.ID)
		return
	}
	s.removeRemoteEvent(ctx, appt.ID, link)
}

func (s *outboundService) createRemoteEvent(ctx context.Context, appointmentID uuid.UUID, event *client.Event) {
	created, appErr := s.api.CreateEvent(ctx, event)
	if appErr != nil {
		s.recordFailure(ctx, appointmentID, appErr)
		return
	}
	if err := s.links.Save(ctx, appointmentID, created.ID, s.now()); err != nil {
		logger.Error("OutboundSync:CreateRemoteEvent:SaveLinkError", "error", err, "appointment_id", appointmentID)
	}
	logger.Info("OutboundSync:CreateRemoteEvent:Success",
		"appointment_id", appointmentID, "event_id", created.ID)
}

// removeRemoteEvent deletes the linked event if one exists. The link is kept
// on failure so a later attempt can retry the delete.
func (s *outboundService) removeRemoteEvent(ctx context.Context, appointmentID uuid.UUID, link *calentity.AppointmentSyncLink) {
	if link == nil || link.EventID == "" {
		return
	}
	if appErr := s.api.DeleteEvent(ctx, link.EventID); appErr != nil {
		s.recordFailure(ctx, appointmentID, appErr)
		return
	}
	if err := s.links.Delete(ctx, appointmentID); err != nil {
		logger.Error("OutboundSync:RemoveRemoteEvent:DeleteLinkError", "error", err, "appointment_id", appointmentID)
	}
}

func (s *outboundService) recordFailure(ctx context.Context, appointmentID uuid.UUID, appErr *errors.AppError) {
	logger.Error("OutboundSync:Failure",
		"appointment_id", appointmentID,
		"kind", appErr.Code,
		"message", appErr.Message,
	)
	if err := s.links.RecordError(ctx, appointmentID, string(appErr.Code), appErr.Message, s.now()); err != nil {
		logger.Error("OutboundSync:RecordFailure:Error", "error", err, "appointment_id", appointmentID)
	}
}

func (s *outboundService) buildEvent(appt *entity.Appointment) (*client.Event, *errors.AppError) {
	cfg, ok := config.GetSafe()
	if !ok {
		return nil, errors.NewAppError(errors.ErrInternalServer, "config not initialized", nil)
	}

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		loc = time.UTC
	}

	start, err := client.FormatDateTime(appt.Date, appt.StartTime, loc)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrValidation, "appointment has an unparseable schedule", err)
	}
	startsAt := appt.StartsAt(loc)
	end := startsAt.Add(time.Duration(appt.DurationMinutes) * time.Minute).Format(time.RFC3339)

	summary := fmt.Sprintf("%s (%s)", appt.PetName, appt.ClientName)
	var description strings.Builder
	if len(appt.ServiceNames) > 0 {
		description.WriteString("Services: " + strings.Join(appt.ServiceNames, ", ") + "\n")
	}
	description.WriteString("Open in clinic: " + appointmentDeepLink(cfg.App.PublicBaseURL, appt))

	event := &client.Event{
		Summary:     summary,
		Description: description.String(),
		ColorID:     statusColors[appt.Status],
		Start:       &client.EventDateTime{DateTime: start, TimeZone: cfg.App.Timezone},
		End:         &client.EventDateTime{DateTime: end, TimeZone: cfg.App.Timezone},
		ExtendedProperties: &client.ExtendedProperties{
			Private: map[string]string{
				constants.ProvenancePropertyKey: appt.ID.String(),
				constants.ProvenanceSourceKey:   constants.ProvenanceSourceMarker,
			},
		},
	}
	return event, nil
}

// appointmentDeepLink builds a human-readable URL back into the clinic app.
func appointmentDeepLink(baseURL string, appt *entity.Appointment) string {
	return fmt.Sprintf("%s/appointments/%s-%s",
		baseURL, slug.Make(appt.PetName+"-"+appt.ClientName), appt.Code)
}
